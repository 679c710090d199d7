package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex sub_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short uppercase ID with a prefix,
// capped at 12 characters, e.g. `INV-XYZ12A8Q`. Used for human-facing
// invoice numbers.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	UUID_PREFIX_CUSTOMER          = "cust"
	UUID_PREFIX_PLAN              = "plan"
	UUID_PREFIX_PRICE             = "price"
	UUID_PREFIX_SUBSCRIPTION      = "sub"
	UUID_PREFIX_PAYMENT           = "pay"
	UUID_PREFIX_REFUND            = "re"
	UUID_PREFIX_PAYMENT_METHOD    = "pm"
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_PROMO_CODE        = "promo"
	UUID_PREFIX_REDEMPTION        = "redeem"
	UUID_PREFIX_DISCOUNT          = "disc"
	UUID_PREFIX_ENTITLEMENT       = "ent"
	UUID_PREFIX_LIMIT             = "lim"
	UUID_PREFIX_USAGE_RECORD      = "usage"
	UUID_PREFIX_VENDOR            = "ven"
	UUID_PREFIX_VENDOR_PAYOUT     = "payout"
	UUID_PREFIX_ADDON             = "addon"
	UUID_PREFIX_SUB_ADDON         = "sub_addon"
	UUID_PREFIX_JOB               = "job"
	UUID_PREFIX_WEBHOOK_EVENT     = "wh"
	UUID_PREFIX_AUDIT_LOG         = "audit"
	UUID_PREFIX_IDEMPOTENCY_KEY   = "idem"
)

const (
	SHORT_ID_PREFIX_INVOICE = "INV-"
)
