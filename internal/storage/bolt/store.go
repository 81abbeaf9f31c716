// Package bolt хранит файлы квитанций и изображения товаров во встроенной BoltDB.
//
// Ключ объекта совпадает с его ссылкой (ref). Повторный Put с тем же путем и теми же
// байтами возвращает прежнюю ссылку без записи, другой набор байтов отклоняется.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/avc/toyshop/internal/domain"
)

const bucketName = "objects"

// ErrObjectConflict путь уже занят другим содержимым
var ErrObjectConflict = errors.New("object path already holds different content")

// Store реализует domain.ObjectStore
type Store struct {
	db      *bolt.DB
	baseURL string
}

// New открывает (или создает) файл BoltDB и бакет объектов
func New(path, baseURL string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("object store: failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store: failed to create bucket: %w", err)
	}

	return &Store{db: db, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Close освобождает блокировку файла
func (s *Store) Close() error {
	return s.db.Close()
}

// Put сохраняет данные по пути и возвращает ссылку на объект
func (s *Store) Put(ctx context.Context, path string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := strings.Trim(path, "/")
	if ref == "" {
		return "", domain.NewValidationError("path", "must not be empty")
	}
	if len(data) == 0 {
		return "", domain.NewValidationError("data", "must not be empty")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if existing := b.Get([]byte(ref)); existing != nil {
			if bytes.Equal(existing, data) {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrObjectConflict, ref)
		}

		return b.Put([]byte(ref), data)
	})
	if err != nil {
		return "", fmt.Errorf("object store: failed to put %s: %w", ref, err)
	}

	return ref, nil
}

// Get читает объект по ссылке
func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(ref))
		if v == nil {
			return domain.ErrObjectNotFound
		}
		// Срез действителен только внутри транзакции
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// URL возвращает адрес, по которому объект отдает HTTP слой
func (s *Store) URL(ref string) string {
	return s.baseURL + "/api/files/" + ref
}
