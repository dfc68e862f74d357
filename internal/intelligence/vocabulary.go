package intelligence

import "strings"

// Unknown is the canonical name for a field that matched nothing in the vocabulary.
const Unknown = "unknown"

// Canonical field names
const (
	FirstName      = "first_name"
	MiddleName     = "middle_name"
	LastName       = "last_name"
	FullName       = "full_name"
	DOB            = "dob"
	SSN            = "ssn"
	EIN            = "ein"
	Email          = "email"
	Phone          = "phone"
	AddressLine1   = "address_line1"
	AddressLine2   = "address_line2"
	City           = "city"
	State          = "state"
	Zip            = "zip"
	Country        = "country"
	Employer       = "employer"
	Occupation     = "occupation"
	Income         = "income"
	MaritalStatus  = "marital_status"
	Gender         = "gender"
	Citizenship    = "citizenship"
	PassportNumber = "passport_number"
	DriversLicense = "drivers_license"
	AccountNumber  = "account_number"
	RoutingNumber  = "routing_number"
	PolicyNumber   = "policy_number"
	MemberID       = "member_id"
	GroupNumber    = "group_number"
	EffectiveDate  = "effective_date"
	ExpirationDate = "expiration_date"
	Signature      = "signature"
	DateSigned     = "date_signed"
)

// vocabularyEntry pairs a canonical name with the labels that refer to it
type vocabularyEntry struct {
	canonical string
	synonyms  []string
}

// vocabulary is the closed canonical field list. Order is significant: it
// breaks ties during fuzzy matching and fixes the iteration order everywhere.
var vocabulary = []vocabularyEntry{
	{FirstName, []string{"first name", "given name", "fname", "first", "forename"}},
	{MiddleName, []string{"middle name", "middle initial", "mname", "middle", "mi"}},
	{LastName, []string{"last name", "surname", "lname", "family name", "last"}},
	{FullName, []string{"full name", "name", "legal name", "complete name"}},
	{DOB, []string{"date of birth", "birth date", "birthday", "dob", "born"}},
	{SSN, []string{"social security", "social security number", "ssn", "social"}},
	{EIN, []string{"ein", "tax id", "employer identification number", "federal tax id"}},
	{Email, []string{"email", "e-mail", "email address", "electronic mail"}},
	{Phone, []string{"phone", "telephone", "tel", "mobile", "cell", "phone number", "contact number"}},
	{AddressLine1, []string{"address", "street address", "address line 1", "address 1", "street"}},
	{AddressLine2, []string{"address line 2", "address 2", "apt", "apartment", "suite", "unit"}},
	{City, []string{"city", "town", "municipality", "locality"}},
	{State, []string{"state", "province", "region"}},
	{Zip, []string{"zip", "zip code", "postal", "postal code", "postcode"}},
	{Country, []string{"country", "nation"}},
	{Employer, []string{"employer", "employer name", "company", "organization", "workplace"}},
	{Occupation, []string{"occupation", "job title", "profession", "position"}},
	{Income, []string{"income", "annual income", "salary", "wages", "earnings"}},
	{MaritalStatus, []string{"marital status", "marital", "relationship status"}},
	{Gender, []string{"gender", "sex", "male/female"}},
	{Citizenship, []string{"citizenship", "nationality", "citizen status"}},
	{PassportNumber, []string{"passport number", "passport", "passport no"}},
	{DriversLicense, []string{"drivers license", "driver license", "license number", "dl"}},
	{AccountNumber, []string{"account number", "account", "acct number", "acct"}},
	{RoutingNumber, []string{"routing number", "routing", "aba", "transit number"}},
	{PolicyNumber, []string{"policy number", "policy", "policy no"}},
	{MemberID, []string{"member id", "member number", "membership", "subscriber id"}},
	{GroupNumber, []string{"group number", "group", "group no"}},
	{EffectiveDate, []string{"effective date", "start date", "begin date"}},
	{ExpirationDate, []string{"expiration date", "expire date", "end date", "valid until"}},
	{Signature, []string{"signature", "sign here", "authorized signature", "signed by"}},
	{DateSigned, []string{"date signed", "signature date", "signed on"}},
}

var vocabularyIndex = func() map[string]int {
	index := make(map[string]int, len(vocabulary))
	for i, e := range vocabulary {
		index[e.canonical] = i
	}
	return index
}()

// CanonicalNames returns the vocabulary in its fixed order.
func CanonicalNames() []string {
	names := make([]string, len(vocabulary))
	for i, e := range vocabulary {
		names[i] = e.canonical
	}
	return names
}

// IsCanonical reports whether name belongs to the vocabulary or is Unknown.
func IsCanonical(name string) bool {
	if name == Unknown {
		return true
	}
	_, ok := vocabularyIndex[name]
	return ok
}

// Synonyms returns the curated labels for a canonical name.
func Synonyms(canonical string) []string {
	i, ok := vocabularyIndex[canonical]
	if !ok {
		return nil
	}
	return append([]string(nil), vocabulary[i].synonyms...)
}

// SearchTerms returns the canonical name spelled with spaces followed by its
// synonyms, without duplicates.
func SearchTerms(canonical string) []string {
	spaced := strings.ReplaceAll(canonical, "_", " ")
	terms := []string{spaced}
	for _, s := range Synonyms(canonical) {
		if s != spaced {
			terms = append(terms, s)
		}
	}
	return terms
}
