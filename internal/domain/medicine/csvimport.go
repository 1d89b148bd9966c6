package medicine

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/umutisafe/api/internal/platform/apperror"
)

// Column identifies a logical registry column independent of how a CSV
// header spells it.
type Column string

const (
	ColRegistrationNumber  Column = "registrationNumber"
	ColBrandName           Column = "brandName"
	ColGenericName         Column = "genericName"
	ColStrength            Column = "strength"
	ColDosageForm          Column = "dosageForm"
	ColPackSize            Column = "packSize"
	ColPackagingType       Column = "packagingType"
	ColShelfLife           Column = "shelfLife"
	ColCategory            Column = "category"
	ColRiskLevel           Column = "riskLevel"
	ColManufacturer        Column = "manufacturer"
	ColManufacturerAddress Column = "manufacturerAddress"
	ColManufacturerCountry Column = "manufacturerCountry"
	ColMAH                 Column = "marketingAuthorizationHolder"
	ColLTR                 Column = "localTechnicalRepresentative"
	ColDisposal            Column = "disposalInstructions"
	ColRegistrationDate    Column = "registrationDate"
	ColExpiryDate          Column = "expiryDate"
)

// columnAliases lists, per column, header spellings after HeaderKey
// normalization.
var columnAliases = map[Column][]string{
	ColRegistrationNumber:  {"registrationnumber", "registrationno", "registrationnum", "regno", "regnumber", "registration", "fdaregistrationnumber", "fdaregno"},
	ColBrandName:           {"brandname", "brand", "tradename", "proprietaryname", "productname"},
	ColGenericName:         {"genericname", "generic", "inn", "innname", "activeingredient", "activeingredients", "internationalnonproprietaryname"},
	ColStrength:            {"strength", "dosagestrength", "dose", "concentration"},
	ColDosageForm:          {"dosageform", "form", "pharmaceuticalform", "formulation"},
	ColPackSize:            {"packsize", "packagesize", "packsizes"},
	ColPackagingType:       {"packagingtype", "packaging", "packagetype", "primarypackaging", "packagingmaterial"},
	ColShelfLife:           {"shelflife", "shelflifemonths"},
	ColCategory:            {"category", "therapeuticclass", "therapeuticcategory", "class", "pharmacologicalclass"},
	ColRiskLevel:           {"risklevel", "risk", "riskcategory"},
	ColManufacturer:        {"manufacturer", "manufacturername", "nameofmanufacturer"},
	ColManufacturerAddress: {"manufactureraddress", "manufacturersaddress", "addressofmanufacturer"},
	ColManufacturerCountry: {"manufacturercountry", "countryofmanufacture", "countryoforigin", "country"},
	ColMAH:                 {"marketingauthorizationholder", "marketingauthorisationholder", "mah"},
	ColLTR:                 {"localtechnicalrepresentative", "localrepresentative", "ltr"},
	ColDisposal:            {"disposalinstructions", "disposal", "disposalguidance"},
	ColRegistrationDate:    {"registrationdate", "dateofregistration", "registereddate"},
	ColExpiryDate:          {"expirydate", "expirydateofregistration", "registrationexpirydate", "expirationdate", "validuntil"},
}

// RequiredColumns must all be present in the header for an import to run.
var RequiredColumns = []Column{
	ColRegistrationNumber,
	ColBrandName,
	ColGenericName,
	ColStrength,
	ColDosageForm,
}

var aliasIndex = func() map[string]Column {
	idx := make(map[string]Column)
	for col, aliases := range columnAliases {
		for _, a := range aliases {
			idx[a] = col
		}
	}
	return idx
}()

// HeaderKey folds a header cell to lower-case ASCII letters and digits:
// accents are stripped and punctuation and whitespace dropped, so
// "Reg. No", "REG_NO" and "Rég no" all become "regno".
func HeaderKey(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, h)
	if err != nil {
		folded = h
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveColumn maps a raw header cell to its logical column.
func ResolveColumn(h string) (Column, bool) {
	col, ok := aliasIndex[HeaderKey(h)]
	return col, ok
}

// Record is one usable CSV row.
type Record struct {
	RegistrationNumber           string
	BrandName                    string
	GenericName                  string
	Strength                     string
	DosageForm                   string
	PackSize                     string
	PackagingType                string
	ShelfLife                    string
	Category                     string
	RiskLevel                    string
	Manufacturer                 string
	ManufacturerAddress          string
	ManufacturerCountry          string
	MarketingAuthorizationHolder string
	LocalTechnicalRepresentative string
	DisposalInstructions         string
	RegistrationDate             *time.Time
	ExpiryDate                   *time.Time
}

// ParsedCSV is the result of reading a registry file before any database
// work happens.
type ParsedCSV struct {
	Records []Record
	Skipped int
	Total   int
}

const utf8BOM = "\uFEFF"

// detectDelimiter picks ';' when the header line has more semicolons than
// commas, which is what spreadsheet exports in many locales produce.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// ParseCSV reads a registry export. A header missing any of the required
// columns fails the whole file with a validation error listing them.
func ParseCSV(data []byte) (*ParsedCSV, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperror.Validation("CSV file is empty")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, apperror.Validation("Unable to read CSV header").Wrap(err)
	}

	positions := make(map[Column]int)
	for i, h := range header {
		if col, ok := ResolveColumn(h); ok {
			if _, seen := positions[col]; !seen {
				positions[col] = i
			}
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := positions[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		return nil, apperror.Validation(
			fmt.Sprintf("CSV is missing required columns: %s", strings.Join(missing, ", ")),
		).WithDetails(map[string]interface{}{"missingColumns": missing})
	}

	out := &ParsedCSV{}
	line := 1
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperror.Validation(fmt.Sprintf("Malformed CSV at line %d", line)).Wrap(err)
		}
		if blankRow(row) {
			continue
		}
		out.Total++

		get := func(col Column) string {
			i, ok := positions[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := Record{
			RegistrationNumber:           get(ColRegistrationNumber),
			BrandName:                    get(ColBrandName),
			GenericName:                  get(ColGenericName),
			Strength:                     get(ColStrength),
			DosageForm:                   get(ColDosageForm),
			PackSize:                     get(ColPackSize),
			PackagingType:                get(ColPackagingType),
			ShelfLife:                    get(ColShelfLife),
			Category:                     get(ColCategory),
			Manufacturer:                 get(ColManufacturer),
			ManufacturerAddress:          get(ColManufacturerAddress),
			ManufacturerCountry:          get(ColManufacturerCountry),
			MarketingAuthorizationHolder: get(ColMAH),
			LocalTechnicalRepresentative: get(ColLTR),
			DisposalInstructions:         get(ColDisposal),
			RegistrationDate:             ParseDate(get(ColRegistrationDate)),
			ExpiryDate:                   ParseDate(get(ColExpiryDate)),
		}
		if rec.GenericName == "" || rec.DosageForm == "" {
			out.Skipped++
			continue
		}
		if rec.Category == "" {
			rec.Category = DefaultCategory
		}
		rec.RiskLevel = InferRisk(get(ColRiskLevel), rec.Category)
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC3339,
}

// ParseDate accepts the date spellings seen in registry exports. Day-first
// wins for ambiguous numeric dates. Unparseable values yield nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// Apply copies the record onto m. Empty optional cells clear nothing that
// was set before.
func (rec Record) Apply(m *Medicine) {
	m.GenericName = rec.GenericName
	m.DosageForm = rec.DosageForm
	m.Category = rec.Category
	m.RiskLevel = rec.RiskLevel
	m.IsActive = true
	set := func(dst **string, v string) {
		if v != "" {
			s := v
			*dst = &s
		}
	}
	set(&m.RegistrationNumber, rec.RegistrationNumber)
	set(&m.BrandName, rec.BrandName)
	set(&m.Strength, rec.Strength)
	set(&m.PackSize, rec.PackSize)
	set(&m.PackagingType, rec.PackagingType)
	set(&m.ShelfLife, rec.ShelfLife)
	set(&m.Manufacturer, rec.Manufacturer)
	set(&m.ManufacturerAddress, rec.ManufacturerAddress)
	set(&m.ManufacturerCountry, rec.ManufacturerCountry)
	set(&m.MarketingAuthorizationHolder, rec.MarketingAuthorizationHolder)
	set(&m.LocalTechnicalRepresentative, rec.LocalTechnicalRepresentative)
	set(&m.DisposalInstructions, rec.DisposalInstructions)
	if rec.RegistrationDate != nil {
		m.RegistrationDate = rec.RegistrationDate
	}
	if rec.ExpiryDate != nil {
		m.ExpiryDate = rec.ExpiryDate
	}
}
