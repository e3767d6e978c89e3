package privacy

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLength is how many hex characters of the digest are exposed
const fingerprintLength = 12

// Notice is the text shown to users before they upload
type Notice struct {
	Title         string   `json:"title"`
	PrivacyPoints []string `json:"privacy_points"`
	Disclaimer    string   `json:"disclaimer"`
}

// PrivacyService handles upload anonymization and privacy disclosures.
// Nothing it touches is persisted.
type PrivacyService struct {
	notice Notice
}

// NewService creates a new privacy service
func NewService() *PrivacyService {
	return &PrivacyService{notice: defaultNotice()}
}

func defaultNotice() Notice {
	return Notice{
		Title: "Privacy and Data Protection",
		PrivacyPoints: []string{
			"No data storage: images are processed in memory and immediately discarded",
			"Anonymous processing: no personal information is collected or retained",
			"Secure upload: images are only used for the analysis you request",
			"No account required: use the service without registration",
		},
		Disclaimer: "This tool is for educational and screening purposes only. It is NOT a substitute " +
			"for professional medical diagnosis. Results should be discussed with a qualified " +
			"healthcare provider. Do not use this tool for emergency medical situations.",
	}
}

// Fingerprint returns a short SHA-256 digest of data suitable for logs.
// It identifies an upload without revealing its content.
func (ps *PrivacyService) Fingerprint(data []byte) string {
	return Fingerprint(data)
}

func Fingerprint(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])[:fingerprintLength]
}

// AnonymizeData creates an anonymized version of an identifying string,
// such as a client-supplied file name.
func (ps *PrivacyService) AnonymizeData(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Scrub zeroes an upload buffer once the analysis no longer needs it
func (ps *PrivacyService) Scrub(data []byte) {
	clear(data)
}

// Notice returns a copy of the privacy notice and disclaimer
func (ps *PrivacyService) Notice() Notice {
	n := ps.notice
	n.PrivacyPoints = append([]string(nil), ps.notice.PrivacyPoints...)
	return n
}

// GetDataRetentionInfo provides information about data retention policies
func (ps *PrivacyService) GetDataRetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"image_retention_seconds":  0,
		"result_retention_seconds": 0,
		"stores_history":           false,
		"requires_account":         false,
		"anonymization_method":     "SHA-256",
		"logged_identifiers":       []string{"upload_fingerprint", "report_id"},
	}
}
