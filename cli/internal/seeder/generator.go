package seeder

import (
	"strconv"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/leadgate/leadgate/common/signing"
)

var products = []string{"mortgage", "auto-loan", "credit-card", "insurance", "solar"}

// Generator produces fake lead payloads.
type Generator struct {
	faker  *gofakeit.Faker
	event  string
	fields map[string]string
}

// NewGenerator returns a generator seeded with seed. A zero seed is random.
func NewGenerator(seed int64, event string, fields map[string]string) *Generator {
	return &Generator{faker: gofakeit.New(seed), event: event, fields: fields}
}

// Lead returns the fields of one lead in a stable order. index is recorded
// as a reference so a run can be traced on the receiving side.
func (g *Generator) Lead(index int) []signing.Param {
	f := g.faker
	person := f.Person()
	address := f.Address()

	lead := []signing.Param{
		{Key: "first_name", Value: person.FirstName},
		{Key: "last_name", Value: person.LastName},
		{Key: "email", Value: person.Contact.Email},
		{Key: "phone", Value: person.Contact.Phone},
		{Key: "city", Value: address.City},
		{Key: "state", Value: address.State},
		{Key: "zip", Value: address.Zip},
		{Key: "company", Value: f.Company()},
		{Key: "product", Value: f.RandomString(products)},
		{Key: "amount", Value: strconv.Itoa(f.Number(1000, 500000))},
		{Key: "ip", Value: f.IPv4Address()},
		{Key: "user_agent", Value: f.UserAgent()},
		{Key: "reference", Value: "seed-" + strconv.Itoa(index)},
	}
	if g.event != "" {
		lead = append(lead, signing.Param{Key: "event", Value: g.event})
	}

	for i := range lead {
		if v, ok := g.fields[lead[i].Key]; ok {
			lead[i].Value = v
		}
	}
	for k, v := range g.fields {
		if !has(lead, k) {
			lead = append(lead, signing.Param{Key: k, Value: v})
		}
	}
	return lead
}

func has(params []signing.Param, key string) bool {
	for _, p := range params {
		if p.Key == key {
			return true
		}
	}
	return false
}

// ToMap flattens a generated lead for batch submission.
func ToMap(params []signing.Param) map[string]string {
	m := make(map[string]string, len(params))
	for _, p := range params {
		m[p.Key] = p.Value
	}
	return m
}
