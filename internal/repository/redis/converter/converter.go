package converter

import "github.com/DRSN-tech/visual-search/internal/domain"

// MetadataConverter преобразует ProductMetadata между domain и моделью кэша.
type MetadataConverter interface {
	ToRedisModel(entity *domain.ProductMetadata) *MetadataRedisModel
	ToEntity(model *MetadataRedisModel) *domain.ProductMetadata
	ToArrRedisModel(entities []*domain.ProductMetadata) []MetadataRedisModel
}

type metadataConverter struct{}

func NewMetadataConverter() MetadataConverter {
	return metadataConverter{}
}

func (metadataConverter) ToRedisModel(entity *domain.ProductMetadata) *MetadataRedisModel {
	if entity == nil {
		return nil
	}

	return &MetadataRedisModel{
		ProductID: entity.ProductID,
		Name:      entity.Name,
		Price:     entity.Price,
		ImageKey:  entity.ImageKey,
		Colors:    entity.Colors,
		Occasions: entity.Occasions,
		Tags:      entity.Tags,
		ShopID:    entity.ShopID,
		IndexedAt: entity.IndexedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}

func (metadataConverter) ToEntity(model *MetadataRedisModel) *domain.ProductMetadata {
	if model == nil {
		return nil
	}

	return &domain.ProductMetadata{
		ProductID: model.ProductID,
		Name:      model.Name,
		Price:     model.Price,
		ImageKey:  model.ImageKey,
		Colors:    model.Colors,
		Occasions: model.Occasions,
		Tags:      model.Tags,
		ShopID:    model.ShopID,
		IndexedAt: model.IndexedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func (c metadataConverter) ToArrRedisModel(entities []*domain.ProductMetadata) []MetadataRedisModel {
	result := make([]MetadataRedisModel, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		result = append(result, *c.ToRedisModel(entity))
	}

	return result
}
