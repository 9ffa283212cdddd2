package domain

import "time"

// ItemError ошибка индексации одного товара в пакете
type ItemError struct {
	ProductID int64
	Err       error
}

// BatchIndexReport итог пакетной индексации
type BatchIndexReport struct {
	Total    int
	Indexed  int
	Failed   int
	Errors   []ItemError
	Duration time.Duration
}

// ReconcileReport итог сверки векторного индекса и хранилища метаданных
type ReconcileReport struct {
	VectorsChecked        int
	MetadataChecked       int
	OrphanVectorsRemoved  int
	OrphanMetadataRemoved int
	Duration              time.Duration
}
