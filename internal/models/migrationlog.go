package models

import "time"

// MigrationLog строка аудита одного запуска миграции JSON → PostgreSQL.
type MigrationLog struct {
	ID            string    // Внутренний UUID
	SourceFile    string    // Путь к исходному JSON-файлу
	TotalRecords  int       // Записей в источнике
	MigratedCount int       // Успешно перенесено
	FailedCount   int       // Пропущено из-за ошибок
	Success       bool      // false, если были пропущенные записи или фатальная ошибка
	ElapsedMs     int64     // Длительность запуска
	BackupPath    *string   // Путь к резервной копии источника (nil, если бэкап отключен)
	ErrorsJSON    string    // Список ошибок запусков в JSON
	CreatedAt     time.Time
}
