package migration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backup копирует исходный файл в каталог dir под именем с меткой времени
// и возвращает путь к копии.
func Backup(sourcePath, dir string) (string, error) {
	const op = "migration.Backup"

	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	name := fmt.Sprintf("%s.backup.%s", filepath.Base(sourcePath), stamp)
	backupPath := filepath.Join(dir, name)

	if err := copyFile(sourcePath, backupPath); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return backupPath, nil
}

// Restore возвращает резервную копию на место исходного файла.
func Restore(backupPath, destPath string) error {
	const op = "migration.Restore"
	if err := copyFile(backupPath, destPath); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
