package repository

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// buildListQuery достраивает к базовому SELECT условия WHERE из предикатов,
// сортировку и пагинацию. Имена полей проверяются по allowed, значения
// передаются только плейсхолдерами.
func buildListQuery(base string, opts models.ListOptions, allowed map[string]bool) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(base)

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conds []string
	for _, f := range opts.Filters {
		if !allowed[f.Field] {
			return "", nil, fmt.Errorf("filter field %q is not allowed", f.Field)
		}
		switch f.Op {
		case models.OpEq:
			conds = append(conds, fmt.Sprintf("%s = %s", f.Field, next(f.Value)))
		case models.OpGte:
			conds = append(conds, fmt.Sprintf("%s >= %s", f.Field, next(f.Value)))
		case models.OpLte:
			conds = append(conds, fmt.Sprintf("%s <= %s", f.Field, next(f.Value)))
		case models.OpLike:
			conds = append(conds, fmt.Sprintf("%s ILIKE %s", f.Field, next(fmt.Sprintf("%%%v%%", f.Value))))
		case models.OpIn:
			values, err := toSlice(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("filter field %q: %w", f.Field, err)
			}
			if len(values) == 0 {
				conds = append(conds, "FALSE")
				continue
			}
			placeholders := make([]string, 0, len(values))
			for _, v := range values {
				placeholders = append(placeholders, next(v))
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", f.Field, strings.Join(placeholders, ", ")))
		default:
			return "", nil, fmt.Errorf("filter field %q: unknown operator %q", f.Field, f.Op)
		}
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	if !allowed[orderBy] && orderBy != "created_at" {
		return "", nil, fmt.Errorf("order field %q is not allowed", orderBy)
	}
	direction := "DESC"
	if opts.Asc {
		direction = "ASC"
	}
	sb.WriteString(fmt.Sprintf(" ORDER BY %s %s", orderBy, direction))

	if opts.Limit > 0 {
		sb.WriteString(" LIMIT " + next(opts.Limit))
	}
	if opts.Offset > 0 {
		sb.WriteString(" OFFSET " + next(opts.Offset))
	}

	return sb.String(), args, nil
}

// toSlice приводит значение предиката IN к срезу аргументов запроса.
func toSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case []int64:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case []models.Tier:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = string(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("operator in expects a slice, got %T", value)
	}
}
