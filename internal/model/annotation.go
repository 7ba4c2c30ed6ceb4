package model

// Annotation status codes. The code is stable across releases; clients
// key on it rather than on the description text.
const (
	StatusSaved            = 1
	StatusUpdated          = 2
	StatusMissingProduct   = 3
	StatusInvalidData      = 4
	StatusAlreadyAnnotated = 5
	StatusOutdatedData     = 10
	StatusUserInputUpdated = 12
)

// AnnotationResult describes the outcome of applying one annotation.
type AnnotationResult struct {
	StatusCode  int    `json:"status_code"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// Terminal reports whether the outcome consumes the insight. Saved,
// updated, missing-product and outdated-data outcomes are final;
// invalid user data and already-annotated leave the insight as it was.
func (r AnnotationResult) Terminal() bool {
	switch r.StatusCode {
	case StatusSaved, StatusUpdated, StatusUserInputUpdated,
		StatusMissingProduct, StatusOutdatedData:
		return true
	}
	return false
}

var (
	// SavedResult: the decision was recorded but nothing was sent to the
	// catalog (refusals, skips, pending votes).
	SavedResult = AnnotationResult{
		StatusCode:  StatusSaved,
		Status:      "saved",
		Description: "the annotation was saved",
	}
	UpdatedResult = AnnotationResult{
		StatusCode:  StatusUpdated,
		Status:      "updated",
		Description: "the annotation was saved and sent to the catalog",
	}
	MissingProductResult = AnnotationResult{
		StatusCode:  StatusMissingProduct,
		Status:      "error_missing_product",
		Description: "the product could not be found in the catalog",
	}
	InvalidDataResult = AnnotationResult{
		StatusCode:  StatusInvalidData,
		Status:      "error_invalid_data",
		Description: "the data schema is invalid",
	}
	AlreadyAnnotatedResult = AnnotationResult{
		StatusCode:  StatusAlreadyAnnotated,
		Status:      "error_already_annotated",
		Description: "the insight has already been annotated",
	}
	OutdatedDataResult = AnnotationResult{
		StatusCode:  StatusOutdatedData,
		Status:      "error_outdated_data",
		Description: "the insight data no longer matches the catalog state",
	}
	UserInputUpdatedResult = AnnotationResult{
		StatusCode:  StatusUserInputUpdated,
		Status:      "user_input_updated",
		Description: "the data provided by the user was saved and sent to the catalog",
	}
)
