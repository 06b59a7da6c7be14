package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscore/campus-api/internal/models"
	"github.com/campuscore/campus-api/internal/repository"
	"github.com/campuscore/campus-api/pkg/config"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
)

type mockCourseRepo struct {
	courses        []models.Course
	total          int
	course         *models.Course
	createErr      error
	capacityErr    error
	listCalls      int
	findCalls      int
	capacityResult *models.Course
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.listCalls++
	return m.courses, m.total, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	m.findCalls++
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	return m.createErr
}

func (m *mockCourseRepo) UpdateCapacity(ctx context.Context, id string, maxCapacity int) (*models.Course, error) {
	if m.capacityErr != nil {
		return nil, m.capacityErr
	}
	return m.capacityResult, nil
}

type stubCatalogCache struct {
	store       map[string][]byte
	invalidated int
}

func (s *stubCatalogCache) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCatalogCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCatalogCache) DeleteByPattern(_ context.Context, _ string) error {
	s.invalidated++
	s.store = nil
	return nil
}

func cachedCatalogConfig() config.CatalogConfig {
	return config.CatalogConfig{CacheEnabled: true, CacheTTL: time.Minute}
}

func TestCourseServiceListPopulatesCache(t *testing.T) {
	repo := &mockCourseRepo{courses: []models.Course{{ID: "CS101", Title: "Intro"}}, total: 1}
	cache := &stubCatalogCache{}
	svc := NewCourseService(repo, cache, cachedCatalogConfig(), nil, nil)

	courses, pagination, err := svc.List(context.Background(), models.CourseFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls)

	// Second read is served from cache.
	courses, _, err = svc.List(context.Background(), models.CourseFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, repo.listCalls)
}

func TestCourseServiceListCacheDisabled(t *testing.T) {
	repo := &mockCourseRepo{courses: []models.Course{{ID: "CS101"}}, total: 1}
	cache := &stubCatalogCache{}
	svc := NewCourseService(repo, cache, config.CatalogConfig{CacheEnabled: false}, nil, nil)

	_, _, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	assert.Empty(t, cache.store)
}

func TestCourseServiceGetMissing(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{}, nil, config.CatalogConfig{}, nil, nil)

	_, err := svc.Get(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestCourseServiceCreateInvalidatesCatalog(t *testing.T) {
	repo := &mockCourseRepo{}
	cache := &stubCatalogCache{store: map[string][]byte{"catalog:list:q=:p=1:s=20": []byte("{}")}}
	svc := NewCourseService(repo, cache, cachedCatalogConfig(), nil, nil)

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		ID:          "CS101",
		Title:       "Intro to Computing",
		Credits:     4,
		MaxCapacity: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.ID)
	assert.Equal(t, 1, cache.invalidated)
}

func TestCourseServiceCreateDuplicate(t *testing.T) {
	repo := &mockCourseRepo{createErr: repository.ErrDuplicateCourse}
	svc := NewCourseService(repo, nil, config.CatalogConfig{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		ID:          "CS101",
		Title:       "Intro to Computing",
		Credits:     4,
		MaxCapacity: 30,
	})
	require.Error(t, err)
	assert.Equal(t, "ALREADY_EXISTS", appErrors.FromError(err).Code)
}

func TestCourseServiceCreateValidation(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := NewCourseService(repo, nil, config.CatalogConfig{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{ID: "CS101", Title: "Intro"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateCapacityBelowEnrollment(t *testing.T) {
	repo := &mockCourseRepo{capacityErr: repository.ErrCapacityBelowEnrollment}
	svc := NewCourseService(repo, nil, config.CatalogConfig{}, nil, nil)

	_, err := svc.UpdateCapacity(context.Background(), "CS101", UpdateCapacityRequest{MaxCapacity: 5})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateCapacity(t *testing.T) {
	repo := &mockCourseRepo{capacityResult: &models.Course{ID: "CS101", MaxCapacity: 40}}
	cache := &stubCatalogCache{}
	svc := NewCourseService(repo, cache, cachedCatalogConfig(), nil, nil)

	course, err := svc.UpdateCapacity(context.Background(), "CS101", UpdateCapacityRequest{MaxCapacity: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, course.MaxCapacity)
	assert.Equal(t, 1, cache.invalidated)
}
