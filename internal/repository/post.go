package repository

import (
	"context"
	"portfolio-api/internal/model"

	"gorm.io/gorm"
)

type PostRepository interface {
	List(ctx context.Context) ([]*model.Post, error)
	FindByID(ctx context.Context, id uint) (*model.Post, error)
	FindBySlug(ctx context.Context, slug string) (*model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	// Update overwrites the editable columns of post.ID and returns the stored row.
	// The slug is fixed at creation.
	Update(ctx context.Context, post *model.Post) (*model.Post, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type postRepoImpl struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepoImpl{db: db}
}

func (r *postRepoImpl) List(ctx context.Context) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&posts).Error

	if err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *postRepoImpl) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepoImpl) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepoImpl) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepoImpl) Update(ctx context.Context, post *model.Post) (*model.Post, error) {
	var updated model.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Post{}).
			Where("id = ?", post.ID).
			Select("title", "excerpt", "content", "image", "category", "keywords", "updated_at").
			Updates(post)

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("id = ?", post.ID).First(&updated).Error
	})

	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (r *postRepoImpl) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
