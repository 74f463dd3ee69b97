package models

// FilterOp оператор сравнения в предикате запроса.
type FilterOp string

// Поддерживаемые операторы. Интерпретатор фильтров в репозитории
// обязан обработать каждый из них явно.
const (
	OpEq   FilterOp = "eq"
	OpIn   FilterOp = "in"
	OpLike FilterOp = "like"
	OpGte  FilterOp = "gte"
	OpLte  FilterOp = "lte"
)

// Filter один предикат запроса: поле, оператор, значение.
// Для OpIn значение должно быть срезом.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// ListOptions параметры выборки: предикаты, сортировка и пагинация.
// Пустой OrderBy означает сортировку по created_at по убыванию.
type ListOptions struct {
	Filters []Filter
	OrderBy string
	Asc     bool
	Limit   int
	Offset  int
}
