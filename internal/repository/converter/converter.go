package converter

import (
	"encoding/json"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// MetadataConverter преобразует ProductMetadata между domain и моделью SQL-хранилища.
type MetadataConverter interface {
	ToModel(entity *domain.ProductMetadata) *MetadataModel
	ToEntity(model *MetadataModel) *domain.ProductMetadata
}

// OutboxEventConverter преобразует OutboxEvent между domain и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *domain.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *domain.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*domain.OutboxEvent
}

type metadataConverter struct{}

func NewMetadataConverter() MetadataConverter {
	return metadataConverter{}
}

func (metadataConverter) ToModel(entity *domain.ProductMetadata) *MetadataModel {
	if entity == nil {
		return nil
	}

	return &MetadataModel{
		ProductID: entity.ProductID,
		Name:      entity.Name,
		Price:     entity.Price,
		ImageKey:  entity.ImageKey,
		Colors:    EncodeStrings(entity.Colors),
		Occasions: EncodeStrings(entity.Occasions),
		Tags:      EncodeStrings(entity.Tags),
		ShopID:    entity.ShopID,
		IndexedAt: entity.IndexedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}

func (metadataConverter) ToEntity(model *MetadataModel) *domain.ProductMetadata {
	if model == nil {
		return nil
	}

	return &domain.ProductMetadata{
		ProductID: model.ProductID,
		Name:      model.Name,
		Price:     model.Price,
		ImageKey:  model.ImageKey,
		Colors:    DecodeStrings(model.Colors),
		Occasions: DecodeStrings(model.Occasions),
		Tags:      DecodeStrings(model.Tags),
		ShopID:    model.ShopID,
		IndexedAt: model.IndexedAt.UTC(),
		UpdatedAt: model.UpdatedAt.UTC(),
	}
}

type outboxEventConverter struct{}

func NewOutboxEventConverter() OutboxEventConverter {
	return outboxEventConverter{}
}

func (outboxEventConverter) ToModel(entity *domain.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		ProductID:   entity.ProductID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (outboxEventConverter) ToEntity(model *OutboxEventModel) *domain.OutboxEvent {
	if model == nil {
		return nil
	}

	return &domain.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   domain.OutboxEventType(model.EventType),
		ProductID:   model.ProductID,
		Payload:     model.Payload,
		Status:      domain.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c outboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*domain.OutboxEvent {
	result := make([]*domain.OutboxEvent, 0, len(models))
	for _, m := range models {
		result = append(result, c.ToEntity(m))
	}

	return result
}

// EncodeStrings сериализует массив в JSON. Пустой массив хранится как NULL.
func EncodeStrings(values []string) *string {
	if len(values) == 0 {
		return nil
	}

	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}

	s := string(data)
	return &s
}

// DecodeStrings разбирает JSON-массив. NULL и битый JSON дают nil.
func DecodeStrings(raw *string) []string {
	if raw == nil || *raw == "" {
		return nil
	}

	var values []string
	if err := json.Unmarshal([]byte(*raw), &values); err != nil {
		return nil
	}

	return values
}
