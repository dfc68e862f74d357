package descriptions

// Tool descriptions with practical examples and use cases

const (
	// Extraction Tools
	ParseDocumentDescription = `Extract filled-in form fields from a PDF and map them onto a fixed vocabulary of canonical fields.

**When to use:** You have a completed PDF form (tax form, insurance application, intake sheet) and need its values as structured data.

**Why it's useful:** Finds label/value pairs in the text layer, runs OCR on scanned pages, reads interactive form widgets, and canonicalizes every label (e.g. "Given Name" → first_name). Each field carries ranked candidates with confidence, bounding box and page, plus validation results.

**Examples:**
• Parse an application: "Extract the applicant details from /forms/application.pdf"
• Cloud extraction: "Parse scan.pdf with the textract provider"
• Inline content: pass the PDF bytes as content_base64 when no file path is available

**Common workflows:**
1. Autofill: parse_document → match_fields → fill the web form from high tier matches
2. Review: parse_document → inspect fields whose chosen value is null or whose validations failed
3. Cost check: list_providers → choose a provider → parse_document with provider

**Best practices:** Check meta.scanned and meta.warnings; scanned pages without OCR degrade to low-confidence text. Fields without a chosen value had no candidate above the auto-choose floor.`

	MatchFieldsDescription = `Match extracted fields to the inputs of a web form.

**When to use:** After parse_document, to decide which value goes into which input of a page.

**Why it's useful:** Scores every input's label, placeholder, aria-label, name and id against each field's canonical name and synonyms, optionally blended with embedding similarity, and buckets matches into high, medium and low confidence tiers.

**Examples:**
• "Match these fields to inputs [{selector: '#email', label_text: 'Email Address'}]"

**Common workflows:**
1. Auto-fill high tier matches, ask the user to confirm medium tier, ignore low tier
2. Re-run with a different input list for each page of a multi-step form

**Best practices:** Pass the fields array from parse_document unchanged. Fields without a chosen value are skipped.`

	ValidateFieldDescription = `Validate a single value for a canonical field.

**When to use:** The user corrected an extracted value, or you need to check a value before submitting it.

**Why it's useful:** Runs the same format, checksum, prefix, range and code rules as parse_document (SSN area/group/serial, EIN campus prefix, email, phone, ZIP, date of birth, US state codes).

**Examples:**
• "Validate ssn 123-45-6789"
• "Is 'ZZ' a valid state?"

**Best practices:** Canonical names are the snake_case names returned in parse_document fields; server_info lists them all.`

	ListProvidersDescription = `List cloud extraction providers, whether each one is configured, and what it costs.

**When to use:** Before passing a provider to parse_document, or to estimate the cost of a large batch.

**Why it's useful:** Providers are alternatives to the local pipeline that return the same result shape; this shows which are usable with the current credentials.

**Examples:**
• "Which providers can I use, and what would 40 pages cost?"`

	ServerInfoDescription = `Get server information, available tools, the canonical field vocabulary and active thresholds.

**When to use:** First contact with the server, or when a parse result needs interpreting.

**Why it's useful:** Explains the confidence thresholds in force and lists every canonical field name that parse_document, match_fields and validate_field understand.`
)

// ToolDescription pairs a tool with its usage notes
type ToolDescription struct {
	Name        string
	Description string
	Usage       string
	Parameters  string
}

// Tools lists the registered tools in presentation order
func Tools() []ToolDescription {
	return []ToolDescription{
		{
			Name:        "parse_document",
			Description: "Extract canonical form fields from a PDF",
			Usage:       "Provide path or content_base64; optionally a provider",
			Parameters:  "path (string), content_base64 (string), provider (string)",
		},
		{
			Name:        "match_fields",
			Description: "Match extracted fields to web form inputs",
			Usage:       "Provide the fields array from parse_document and the form inputs",
			Parameters:  "fields (JSON array), inputs (JSON array)",
		},
		{
			Name:        "validate_field",
			Description: "Validate one value for a canonical field",
			Usage:       "Provide a canonical name and a value",
			Parameters:  "canonical (string, required), value (string, required)",
		},
		{
			Name:        "list_providers",
			Description: "List cloud providers with configuration state and cost",
			Usage:       "Optionally provide a page count for a cost estimate",
			Parameters:  "pages (number)",
		},
		{
			Name:        "server_info",
			Description: "Server information, vocabulary and thresholds",
			Usage:       "No parameters",
			Parameters:  "none",
		},
	}
}
