package pdf

// DefaultScanThreshold is the average characters per page below which a
// document is treated as scanned.
const DefaultScanThreshold = 100

// IsScanned reports whether the text layer is too sparse to be trusted.
// A document without pages is considered scanned.
func IsScanned(doc *Document, threshold int) bool {
	if doc == nil || len(doc.Pages) == 0 {
		return true
	}
	if threshold <= 0 {
		threshold = DefaultScanThreshold
	}

	total := 0
	for _, p := range doc.Pages {
		total += p.CharCount()
	}
	return float64(total)/float64(len(doc.Pages)) < float64(threshold)
}
