package domain

// Plan is a subscription tier a registering school can pick. Amount is the
// charge in minor units (cents) passed to the payment gateway.
type Plan struct {
	ID       string
	Name     string
	Amount   int64
	Currency string
}

// Plans is the fixed catalog offered during registration.
var Plans = []Plan{
	{ID: "basic", Name: "Basic", Amount: 2900, Currency: "EUR"},
	{ID: "standard", Name: "Standard", Amount: 7900, Currency: "EUR"},
	{ID: "premium", Name: "Premium", Amount: 14900, Currency: "EUR"},
}

// PlanByID looks up a plan in the catalog.
func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
