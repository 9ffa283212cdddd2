package domain

import "time"

// ProductMetadata описывает денормализованную запись товара для обогащения результатов поиска
type ProductMetadata struct {
	ProductID int64
	Name      string
	Price     int64  // Цена хранится в копейках
	ImageKey  string // ключ объекта в бакете или исходный URL изображения
	Colors    []string
	Occasions []string
	Tags      []string
	ShopID    *int64
	IndexedAt time.Time
	UpdatedAt time.Time
}

func NewProductMetadata(
	productID int64,
	name string,
	price int64,
	imageKey string,
	colors, occasions, tags []string,
	shopID *int64,
) *ProductMetadata {
	return &ProductMetadata{
		ProductID: productID,
		Name:      name,
		Price:     price,
		ImageKey:  imageKey,
		Colors:    colors,
		Occasions: occasions,
		Tags:      tags,
		ShopID:    shopID,
	}
}

// CatalogProduct описывает товар, полученный из внешнего каталога
type CatalogProduct struct {
	ID        int64
	Name      string
	Price     int64 // Цена в копейках
	ImageURL  string
	ShopID    *int64
	Colors    []string
	Occasions []string
	Tags      []string
}

// CatalogPage страница каталога
type CatalogPage struct {
	Products []CatalogProduct
	Limit    int
	Offset   int
}
