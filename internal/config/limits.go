package config

const (
	// MaxFilterNameLength is the maximum length for filter names.
	// Limited to 100 to fit in PostgreSQL VARCHAR(100) and keep names
	// usable in filter pickers.
	MaxFilterNameLength = 100

	// MaxFilterDescriptionLength is the maximum length for filter
	// descriptions.
	MaxFilterDescriptionLength = 4000
)
