package txpool

// dbMultiTransaction is the multi_transactions table of spec §4.8, storing
// one persisted row per admitted batch.
type dbMultiTransaction struct {
	ID            uint   `gorm:"primary_key"`
	Digest        string `gorm:"unique_index;size:64"`
	Sender        string `gorm:"index"`
	SenderID      string
	Timestamp     string `gorm:"index"`
	SignatureHex  string
	EncodedBlob   []byte
	IsValid       bool
	ValidationTime int64
	Processed     bool
}

func (dbMultiTransaction) TableName() string { return "multi_transactions" }

// dbValidationResult is the validation_results table of spec §4.8, an
// append-only audit trail of admission checks.
type dbValidationResult struct {
	ID             uint   `gorm:"primary_key"`
	Digest         string `gorm:"index"`
	ValidationType string
	IsValid        bool
	ErrorMessage   string
	ValidationTime int64
}

func (dbValidationResult) TableName() string { return "validation_results" }
