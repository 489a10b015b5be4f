package catalog

import "fmt"

// MalformedCatalogError reports a catalog that cannot drive a crawl.
type MalformedCatalogError struct {
	Section string
	Reason  string
	Cause   error
}

func (e *MalformedCatalogError) Error() string {
	msg := "malformed catalog: " + e.Reason
	if e.Section != "" {
		msg = fmt.Sprintf("malformed catalog: section %q: %s", e.Section, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

func (e *MalformedCatalogError) Unwrap() error {
	return e.Cause
}
