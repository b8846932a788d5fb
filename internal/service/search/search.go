package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/models"
)

// CourseIndex keeps the course catalog searchable.
type CourseIndex interface {
	Search(ctx context.Context, query string, from, size int) (int64, []models.Course, error)
	Index(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
}

type ESCourseIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewESCourseIndex(es *elasticsearch.Client, index string) *ESCourseIndex {
	return &ESCourseIndex{ES: es, Index: index}
}

func (s *ESCourseIndex) Search(ctx context.Context, query string, from, size int) (int64, []models.Course, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "description", "language", "level"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search: %s: %s", res.Status(), msg)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Course `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search: decode: %w", err)
	}

	courses := make([]models.Course, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		courses[i] = hit.Source
	}
	return r.Hits.Total.Value, courses, nil
}

func (s *ESCourseIndex) Index(ctx context.Context, course *models.Course) error {
	data, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("search: encode course: %w", err)
	}
	res, err := s.ES.Index(
		s.Index,
		bytes.NewReader(data),
		s.ES.Index.WithContext(ctx),
		s.ES.Index.WithDocumentID(strconv.FormatUint(uint64(course.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("search: index course %d: %w", course.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index course %d: %s", course.ID, res.Status())
	}
	return nil
}

func (s *ESCourseIndex) Delete(ctx context.Context, id uint) error {
	res, err := s.ES.Delete(
		s.Index,
		strconv.FormatUint(uint64(id), 10),
		s.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: delete course %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("search: delete course %d: %s", id, res.Status())
	}
	return nil
}

// DBCourseIndex searches with LIKE queries when Elasticsearch is not configured.
type DBCourseIndex struct {
	DB *gorm.DB
}

func (s *DBCourseIndex) Search(ctx context.Context, query string, from, size int) (int64, []models.Course, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	q := s.DB.WithContext(ctx).Model(&models.Course{}).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var courses []models.Course
	if err := q.Order("id ASC").Offset(from).Limit(size).Find(&courses).Error; err != nil {
		return 0, nil, err
	}
	return total, courses, nil
}

func (s *DBCourseIndex) Index(context.Context, *models.Course) error { return nil }
func (s *DBCourseIndex) Delete(context.Context, uint) error          { return nil }
