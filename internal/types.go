package internal

type DocumentKind string

const (
	DocumentKML  DocumentKind = "kml"
	DocumentKMZ  DocumentKind = "kmz"
	DocumentXLSX DocumentKind = "xlsx"
)

type ArtifactSource string

const (
	SourceUpload ArtifactSource = "upload"
	SourceCLI    ArtifactSource = "cli"
	SourceFetch  ArtifactSource = "fetch"
	SourceMail   ArtifactSource = "mail"
)

// RawRecord is one parsed placemark in document order.
type RawRecord struct {
	Identifier string
	Latitude   float64
	Longitude  float64
}

// KeyedRecord is a RawRecord plus the fields derived from its identifier.
// JSON names follow the exported table header.
type KeyedRecord struct {
	Identifier string  `json:"ID"`
	Latitude   float64 `json:"Latitude"`
	Longitude  float64 `json:"Longitude"`
	NumberKey  int64   `json:"number"`
	DisplayID  string  `json:"formatted_ID"`
}

type Summary struct {
	TotalRecords   int           `json:"total_poles"`
	DuplicateKeys  []int64       `json:"duplicate_numbers"`
	DuplicateCount int           `json:"duplicate_count"`
	Preview        []KeyedRecord `json:"sample_data"`
}

type ArtifactRow struct {
	ID             int
	Filename       string
	Path           string
	XLSXPath       string
	Source         string
	OriginalName   string
	TotalRecords   int
	DuplicateCount int
	CreatedAt      string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// MapDocument is a named map document pulled out of some container (an email, a download).
type MapDocument struct {
	Filename string
	Kind     DocumentKind
	Content  []byte
}
