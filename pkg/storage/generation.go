package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Generation is one submitted music generation request and its outcome.
// Timed-out tasks keep their TaskID so they can be rechecked later.
type Generation struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TaskID string `gorm:"index;not null;default:''"`
	Status string `gorm:"index;not null;default:''"`

	CustomMode   bool   `gorm:"not null;default:false"`
	Model        string `gorm:"not null;default:''"`
	Prompt       string `gorm:"not null;default:''"`
	Style        string `gorm:"not null;default:''"`
	Title        string `gorm:"not null;default:''"`
	Instrumental bool   `gorm:"not null;default:false"`

	Audio1 string `gorm:"not null;default:''"`
	Audio2 string `gorm:"not null;default:''"`
	Cover  string `gorm:"not null;default:''"`

	GeneratedTitle string `gorm:"not null;default:''"`
	Tags           string `gorm:"not null;default:''"`
	Lyrics         string `gorm:"not null;default:''"`
	Details        string `gorm:"not null;default:''"`
}

func (s *Store) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var v Generation
	if err := s.db.First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get generation %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) GetGenerationByTask(ctx context.Context, taskID string) (*Generation, error) {
	var v Generation
	if err := s.db.First(&v, "task_id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get generation for task %s: %w", taskID, err)
	}
	return &v, nil
}

func (s *Store) SetGeneration(ctx context.Context, v *Generation) error {
	if err := s.db.Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set generation %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeleteGeneration(ctx context.Context, id string) error {
	if err := s.db.Delete(&Generation{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete generation %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListGenerations(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Generation, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Generation{}

	q := s.db.Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list generations: %w", err)
	}
	return vs, nil
}
