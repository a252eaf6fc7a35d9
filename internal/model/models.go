package model

// Sentinels substituted for missing catalog values
const (
	UnknownValue       = "Unknown"
	UncategorizedValue = "Uncategorized"
	MissingScore int32 = -1
)

// DefaultCountry is the countries substring the brand report is scoped to
const DefaultCountry = "france"

// Catalog columns the pipeline projects to
const (
	ColumnCode            = "code"
	ColumnProductName     = "product_name"
	ColumnBrands          = "brands"
	ColumnCategories      = "categories"
	ColumnNutriscoreScore = "nutriscore_score"
	ColumnCountries       = "countries"
)

// RequiredColumns lists the catalog columns in projection order
var RequiredColumns = []string{
	ColumnCode,
	ColumnProductName,
	ColumnBrands,
	ColumnCategories,
	ColumnNutriscoreScore,
	ColumnCountries,
}

// RawRecord is a catalog row projected to the report columns.
// A nil field was absent, empty or (for the score) not a number in the source.
type RawRecord struct {
	Code            string
	ProductName     *string
	Brands          *string
	Categories      *string
	NutriscoreScore *int32
	Countries       *string
}

// RawDataset is the Loader output
type RawDataset struct {
	Source    string      `json:"source"`
	Columns   []string    `json:"columns"` // header as read from the source
	Rows      []RawRecord `json:"-"`
	Malformed int         `json:"malformed"` // rows skipped by the delimited reader
}

// CleanedRecord is a catalog row after normalization; every field is total.
type CleanedRecord struct {
	Code            string `json:"code"`
	ProductName     string `json:"product_name"`
	Brands          string `json:"brands"`
	Categories      string `json:"categories"`
	NutriscoreScore int32  `json:"nutriscore_score"`
	Countries       string `json:"countries"`
}

// Raw turns a cleaned row back into loader shape so it can be cleaned again
func (c CleanedRecord) Raw() RawRecord {
	score := c.NutriscoreScore
	productName, brands, categories, countries := c.ProductName, c.Brands, c.Categories, c.Countries
	return RawRecord{
		Code:            c.Code,
		ProductName:     &productName,
		Brands:          &brands,
		Categories:      &categories,
		NutriscoreScore: &score,
		Countries:       &countries,
	}
}

// CleanedDataset is the Cleaner output: one row per distinct code, in input order
type CleanedDataset struct {
	Rows       []CleanedRecord `json:"-"`
	Duplicates int             `json:"duplicates"`
}

// BrandAggregate is one row of the brand report
type BrandAggregate struct {
	Brands        string  `json:"brands" parquet:"brands"`
	AvgNutriscore float64 `json:"avg_nutriscore" parquet:"avg_nutriscore"`
	ProductCount  int64   `json:"product_count" parquet:"product_count"`
}

// AnalysisOptions scopes the brand report
type AnalysisOptions struct {
	Country string `json:"country"` // case-insensitive substring of countries
}

// BrandReport is the Analyzer output
type BrandReport struct {
	Country string           `json:"country"`
	Matched int              `json:"matched"` // cleaned rows whose countries matched
	Rows    []BrandAggregate `json:"rows"`
}

// Export defines the optional exports written next to the parquet output
type Export struct {
	Files []string `json:"files,omitempty"` // .csv, .json, .xlsx or .parquet
	DB    bool     `json:"db,omitempty"`    // store brand rows in the run store
}

// RunSpec describes one pipeline run
type RunSpec struct {
	InputPath  string  `json:"inputPath"`
	OutputPath string  `json:"outputPath"`
	Country    string  `json:"country"`
	TopN       int     `json:"topN"`
	Export     *Export `json:"export,omitempty"`
}
