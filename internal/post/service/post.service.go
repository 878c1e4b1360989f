package service

import (
	"context"
	"strings"

	"postbase/internal/policy"
	"postbase/internal/post/model"
	"postbase/internal/post/store"
	"postbase/internal/search"
	"postbase/pkg/logger"
)

// PostService is the boundary the web layer talks to. It enforces the
// access policy before any mutation reaches the store; reads skip the check
// only logically (the policy still runs and always allows them).
type PostService struct {
	Store           *store.Store
	Index           *search.Index
	DefaultPageSize int
}

func NewPostService(st *store.Store, idx *search.Index, defaultPageSize int) *PostService {
	if defaultPageSize <= 0 {
		defaultPageSize = 25
	}
	return &PostService{Store: st, Index: idx, DefaultPageSize: defaultPageSize}
}

// List serves both browsing and text search; an empty filterText is
// "browse all". Callers follow NextCursor for infinite scroll.
func (s *PostService) List(role policy.Role, filterText, cursor string, pageSize int) (model.PostPage, error) {
	op := policy.OpList
	if filterText != "" {
		op = policy.OpSearch
	}
	if err := policy.Authorize(role, op); err != nil {
		return model.PostPage{}, err
	}
	if pageSize <= 0 {
		pageSize = s.DefaultPageSize
	}
	return s.Index.Query(filterText, cursor, pageSize)
}

func (s *PostService) Get(role policy.Role, id string) (model.Post, error) {
	if err := policy.Authorize(role, policy.OpRead); err != nil {
		return model.Post{}, err
	}
	return s.Store.Get(id)
}

func (s *PostService) Create(role policy.Role, req model.CreatePostRequest) (model.Post, error) {
	if err := policy.Authorize(role, policy.OpCreate); err != nil {
		return model.Post{}, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return model.Post{}, &model.ValidationError{Field: "title"}
	}
	if strings.TrimSpace(req.Content) == "" {
		return model.Post{}, &model.ValidationError{Field: "content"}
	}
	p, err := s.Store.Create(req.Title, req.Content)
	if err == nil {
		logger.Sugar.Infof("Post %s created", p.ID)
	}
	return p, err
}

func (s *PostService) Update(role policy.Role, id string, req model.UpdatePostRequest) (model.Post, error) {
	if err := policy.Authorize(role, policy.OpUpdate); err != nil {
		return model.Post{}, err
	}
	// Omitted fields keep their stored values; present fields must not be
	// blanked out.
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return model.Post{}, &model.ValidationError{Field: "title"}
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		return model.Post{}, &model.ValidationError{Field: "content"}
	}
	p, err := s.Store.Update(id, req.ExpectedVersion, req.Title, req.Content)
	if err == nil {
		logger.Sugar.Infof("Post %s updated to version %d", id, p.Version)
	}
	return p, err
}

func (s *PostService) Delete(role policy.Role, id string, expectedVersion int64) error {
	if err := policy.Authorize(role, policy.OpDelete); err != nil {
		return err
	}
	if err := s.Store.Delete(id, expectedVersion); err != nil {
		return err
	}
	logger.Sugar.Infof("Post %s deleted", id)
	return nil
}

// Reindex rebuilds the search index from a full store scan.
func (s *PostService) Reindex(ctx context.Context, role policy.Role) error {
	if err := policy.Authorize(role, policy.OpReindex); err != nil {
		return err
	}
	return s.Index.Reindex(ctx, s.Store.Snapshot)
}
