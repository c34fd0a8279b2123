package models

// MarkType classifies the visual form of a registered mark.
type MarkType int

const (
	// MarkTypeUnknown means no classification has been performed yet,
	// or the registration carries no mark image.
	MarkTypeUnknown MarkType = iota
	// MarkTypeStandard is a plain standard-character mark.
	MarkTypeStandard
	// MarkTypeStylized is a stylized or design mark.
	MarkTypeStylized
	// MarkTypeSlogan is a multi-word slogan mark.
	MarkTypeSlogan
)

// Classification is one goods-and-services class code with its description.
type Classification struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Trademark holds the structured result of a TSDR status lookup for one
// serial number, plus the mark-image classification when performed.
type Trademark struct {
	MarkName             string           `json:"mark_name"`
	FilingDate           string           `json:"filing_date"`
	MarkType             MarkType         `json:"mark_type"`
	USClasses            []Classification `json:"us_classes"`
	InternationalClasses []Classification `json:"international_classes"`
	Description          string           `json:"description"`
}
