package models

import (
	"context"
	"strings"
	"time"

	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
	"gorm.io/gorm"
)

type Resource struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Title           string    `gorm:"size:255;not null;index" json:"title" binding:"required"`
	Author          string    `gorm:"size:255;not null;index" json:"author" binding:"required"`
	Description     string    `gorm:"type:text" json:"description"`
	Category        string    `gorm:"size:100;index" json:"category"`
	PackageType     string    `gorm:"size:20;not null;default:free" json:"package_type"`
	Isbn            string    `gorm:"size:20" json:"isbn"`
	ImageUrl        string    `json:"image_url"`
	ThumbnailUrl    string    `json:"thumbnail_url"`
	TotalCopies     int       `gorm:"not null;default:0" json:"total_copies"`
	AvailableCopies int       `gorm:"not null;default:0" json:"available_copies"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewResource struct {
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PackageType string `json:"package_type"`
	Isbn        string `json:"isbn"`
	ImageData   string `json:"image_data"`
	TotalCopies int    `json:"total_copies" binding:"required"`
}

// PublicResource is the catalog view exposed to readers. Copy counts stay
// internal; only availability is surfaced.
type PublicResource struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	PackageType  string `json:"package_type"`
	Isbn         string `json:"isbn"`
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
	Available    bool   `json:"available"`
}

/*
caches:
	AvailableResources:$packageType
	ResourceKeywords
*/

func bustResourceCaches() {
	_ = config.RemoveRedisKey(
		"AvailableResources:"+PackageTypeFree,
		"AvailableResources:"+PackageTypePremium,
		"ResourceKeywords",
	)
}

// GetAvailableResources lists the catalog for a membership tier. Premium
// resources are hidden from free members. Results are cached in redis for
// five minutes; any catalog or copy-count mutation busts the cache.
func GetAvailableResources(ctx context.Context, packageType string) ([]*PublicResource, error) {

	if packageType != PackageTypePremium {
		packageType = PackageTypeFree
	}

	var results []*PublicResource
	cacheKey := "AvailableResources:" + packageType
	exists, err := config.GetRedisObject(cacheKey, &results)
	if err == nil && exists {
		return results, nil
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Resource{})
	if packageType == PackageTypeFree {
		dbCtx = dbCtx.Where("package_type = ?", PackageTypeFree)
	}
	var resources []*Resource
	if err := dbCtx.Order("title").Find(&resources).Error; err != nil {
		return nil, err
	}

	results = make([]*PublicResource, 0, len(resources))
	for _, r := range resources {
		results = append(results, &PublicResource{
			ID:           r.ID,
			Title:        r.Title,
			Author:       r.Author,
			Description:  r.Description,
			Category:     r.Category,
			PackageType:  r.PackageType,
			Isbn:         r.Isbn,
			ImageUrl:     r.ImageUrl,
			ThumbnailUrl: r.ThumbnailUrl,
			Available:    r.AvailableCopies > 0,
		})
	}

	_ = config.SetRedisObject(cacheKey, &results, 5*time.Minute)
	return results, nil
}

// GetResourceKeywords returns the distinct titles and authors for search
// autocomplete.
func GetResourceKeywords(ctx context.Context) ([]string, error) {

	var keywords []string
	exists, err := config.GetRedisObject("ResourceKeywords", &keywords)
	if err == nil && exists {
		return keywords, nil
	}

	db := config.GetDB()
	var titles []string
	if err := db.WithContext(ctx).Model(&Resource{}).Distinct("title").Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	var authors []string
	if err := db.WithContext(ctx).Model(&Resource{}).Distinct("author").Pluck("author", &authors).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(titles)+len(authors))
	keywords = make([]string, 0, len(titles)+len(authors))
	for _, k := range append(titles, authors...) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
	}

	_ = config.SetRedisObject("ResourceKeywords", &keywords, 5*time.Minute)
	return keywords, nil
}

// CreateResource adds a catalog entry. When ImageData carries a base64 cover
// it is uploaded to cloud storage along with a generated thumbnail.
func CreateResource(ctx context.Context, input *NewResource) (*Resource, error) {

	if input.TotalCopies <= 0 {
		return nil, utils.NewValidationError("total copies must be positive")
	}
	packageType := input.PackageType
	if packageType == "" {
		packageType = PackageTypeFree
	}
	if packageType != PackageTypeFree && packageType != PackageTypePremium {
		return nil, utils.NewValidationError("invalid package type")
	}

	resource := Resource{
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		Description:     input.Description,
		Category:        input.Category,
		PackageType:     packageType,
		Isbn:            input.Isbn,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
	}

	if input.ImageData != "" {
		imageUrl, thumbnailUrl, err := utils.UploadCoverImage(ctx, input.ImageData)
		if err != nil {
			return nil, err
		}
		resource.ImageUrl = imageUrl
		resource.ThumbnailUrl = thumbnailUrl
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&resource).Error; err != nil {
		return nil, err
	}

	bustResourceCaches()
	return &resource, nil
}

func GetAllResources(ctx context.Context, page int, pageSize int) ([]*Resource, error) {

	db := config.GetDB()
	var results []*Resource

	if err := db.WithContext(ctx).Scopes(Paginate(page, pageSize)).
		Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetResource(ctx context.Context, id int) (*Resource, error) {

	db := config.GetDB()
	var result Resource

	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// holdCopy atomically claims one available copy. The WHERE clause keeps
// available_copies from going below zero under concurrent borrows; zero rows
// affected means the last copy was taken by someone else.
func holdCopy(tx *gorm.DB, resourceId int) (bool, error) {
	result := tx.Model(&Resource{}).
		Where("id = ? AND available_copies > 0", resourceId).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// releaseCopy returns a held copy to the pool.
func releaseCopy(tx *gorm.DB, resourceId int) error {
	return tx.Model(&Resource{}).
		Where("id = ?", resourceId).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1")).Error
}
