package service

import (
	"context"
	"errors"
	"fmt"
	"portfolio-api/internal/dto"
	"portfolio-api/internal/model"
	"portfolio-api/internal/repository"

	"gorm.io/gorm"
)

type BlogService interface {
	ListPosts(ctx context.Context) ([]*model.Post, error)
	GetPost(ctx context.Context, id uint, slug string) (*model.Post, error)
	CreatePost(ctx context.Context, req *dto.PostRequest) (*model.Post, error)
	UpdatePost(ctx context.Context, id uint, req *dto.PostRequest) (*model.Post, error)
	DeletePost(ctx context.Context, id uint) error
}

type blogServiceImpl struct {
	postRepo repository.PostRepository
}

func NewBlogService(postRepo repository.PostRepository) BlogService {
	return &blogServiceImpl{postRepo: postRepo}
}

func (s *blogServiceImpl) ListPosts(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

// GetPost looks the post up by id when set, otherwise by slug.
func (s *blogServiceImpl) GetPost(ctx context.Context, id uint, slug string) (*model.Post, error) {
	var (
		post *model.Post
		err  error
	)
	switch {
	case id != 0:
		post, err = s.postRepo.FindByID(ctx, id)
	case slug != "":
		post, err = s.postRepo.FindBySlug(ctx, slug)
	default:
		return nil, fmt.Errorf("%w: ID or Slug required", ErrInvalidInput)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (s *blogServiceImpl) CreatePost(ctx context.Context, req *dto.PostRequest) (*model.Post, error) {
	if req.Title == "" || req.Slug == "" {
		return nil, fmt.Errorf("%w: Title and Slug are required", ErrInvalidInput)
	}

	post := &model.Post{
		Title:    req.Title,
		Slug:     req.Slug,
		Excerpt:  req.Excerpt,
		Content:  req.Content,
		Image:    req.Image,
		Category: req.Category,
		Keywords: req.Keywords,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

func (s *blogServiceImpl) UpdatePost(ctx context.Context, id uint, req *dto.PostRequest) (*model.Post, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: ID required", ErrInvalidInput)
	}

	post, err := s.postRepo.Update(ctx, &model.Post{
		ID:       id,
		Title:    req.Title,
		Excerpt:  req.Excerpt,
		Content:  req.Content,
		Image:    req.Image,
		Category: req.Category,
		Keywords: req.Keywords,
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

func (s *blogServiceImpl) DeletePost(ctx context.Context, id uint) error {
	if id == 0 {
		return fmt.Errorf("%w: ID required", ErrInvalidInput)
	}

	deleted, err := s.postRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if !deleted {
		return ErrPostNotFound
	}
	return nil
}
