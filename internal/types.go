package internal

// Subsidiaries a rebate offer can apply to.
const (
	SubsidiaryNL = "NL"
	SubsidiaryBE = "BE"
	SubsidiaryDE = "DE"
)

// RawCandidate is one loosely typed record produced by the extraction
// service. Keys are matched case-insensitively; values may be strings,
// numbers, booleans or null, and any field may be missing or malformed.
type RawCandidate map[string]any

// RebateItem is the canonical record shape shared by all pipeline stages.
// Every recognized field is present after normalization; nil means the
// value was absent or could not be normalized. RebateCompensationFactor,
// once non-nil, is strictly positive and holds an absolute per-unit value,
// never a percentage. IsDesired is nil until the evaluator has run.
type RebateItem struct {
	ManufacturerProductCode  *string  `json:"manufacturer_product_code"`
	ProductID                *string  `json:"product_id"`
	ProductName              *string  `json:"product_name"`
	Subsidiary               *string  `json:"subsidiary"`
	StartDate                *string  `json:"start_date"`
	EndDate                  *string  `json:"end_date"`
	CampaignPromotionRelated *bool    `json:"campaign_promotion_related"`
	RebateCompensationFactor *float64 `json:"rebate_compensation_factor"`
	MaxSPQ                   *int     `json:"max_spq"`
	IsDesired                *bool    `json:"is_desired,omitempty"`
}

// ItemIssues lists the validation findings for a single item, keyed by its
// position in the batch. Items without findings get no entry.
type ItemIssues struct {
	ItemIndex int      `json:"item_index"`
	Issues    []string `json:"issues"`
}

// ReferenceRow is one row of the internal reference dataset, keyed by column
// header. Which columns matter is configuration, not hard-coded.
type ReferenceRow map[string]string

// ReferenceColumns names the three reference columns the lookup builder
// reads: the manufacturer code, the subsidiary and the minimum compensation
// below which a rebate is not worth accepting.
type ReferenceColumns struct {
	Code                 string
	Subsidiary           string
	RequiredCompensation string
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

// RebateExportRow is one evaluated item flattened for XLSX export, with its
// validation findings joined in.
type RebateExportRow struct {
	ItemIndex                int
	ManufacturerProductCode  *string
	ProductID                *string
	ProductName              *string
	Subsidiary               *string
	StartDate                *string
	EndDate                  *string
	CampaignPromotionRelated *bool
	RebateCompensationFactor *float64
	MaxSPQ                   *int
	IsDesired                bool
	Issues                   string
}
