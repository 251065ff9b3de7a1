package rfq

import "errors"

var (
	ErrRFQNotFound                 = errors.New("rfq not found")
	ErrItemNotInRFQ                = errors.New("item not found in rfq")
	ErrVendorHasNotResponded       = errors.New("the vendor has not yet replied to the rfq")
	ErrInvalidProcurementReference = errors.New("invalid procurement reference")
	ErrVendorNotFound              = errors.New("vendor not found")
	ErrTokenRevoked                = errors.New("rfq has been disabled")
	ErrRFQClosed                   = errors.New("rfq is already ordered")
	ErrInvalidRequest              = errors.New("invalid rfq request")
	ErrIncompleteItem              = errors.New("missing field(s)")
)
