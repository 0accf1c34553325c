package contacts

import "context"

// Row is one raw record keyed by the source header. A missing key is "absent";
// a present key may still hold an empty string.
type Row map[string]string

// Get returns the value for key and whether the key is present.
func (r Row) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

// Contact is a validated recipient. Phone is canonical ("+" followed by digits).
type Contact struct {
	Name     string
	Phone    string
	Schedule string
}

// Result is the loader output: contacts in first-seen order plus rejection counters.
type Result struct {
	Contacts           []Contact
	RejectedNoPhone    int
	RejectedNoSchedule int
}

// Source yields raw rows. A failure to open or read the source is fatal for the run.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Schema names the columns the loader probes.
type Schema struct {
	NameColumn     string
	ScheduleColumn string
	// PhoneColumns are tried in order; the first present key wins.
	PhoneColumns []string
}

// DefaultSchema matches the spreadsheet exports the tool was built for.
func DefaultSchema() Schema {
	return Schema{
		NameColumn:     "name",
		ScheduleColumn: "horario",
		PhoneColumns:   []string{"Whatsapp", "WhatsApp", "whatsapp", "Phone", "number", "phone"},
	}
}
