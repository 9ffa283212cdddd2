package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}

// payloadIndexes поля payload, по которым фильтруется поиск.
var payloadIndexes = map[string]qdrant.FieldType{
	"shop_id":   qdrant.FieldType_FieldTypeInteger,
	"colors":    qdrant.FieldType_FieldTypeKeyword,
	"occasions": qdrant.FieldType_FieldTypeKeyword,
	"tags":      qdrant.FieldType_FieldTypeKeyword,
}

// EnsureCollection создает коллекцию с косинусной метрикой и индексами payload, если ее еще нет.
func EnsureCollection(ctx context.Context, client *QdrantClient) error {
	name := client.cfg.QdrantCollectionName

	exists, err := client.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		return nil
	}

	if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     client.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for field, fieldType := range payloadIndexes {
		if _, err := client.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			return fmt.Errorf("failed to create payload index %s: %w", field, err)
		}
	}

	return nil
}
