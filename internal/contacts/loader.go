package contacts

import (
	"strings"

	"zapsender/internal/phone"
	logx "zapsender/pkg/logx"
)

// Loader validates and deduplicates raw rows.
type Loader struct {
	schema Schema
	log    logx.Logger
}

func NewLoader(schema Schema, log logx.Logger) *Loader {
	def := DefaultSchema()
	if strings.TrimSpace(schema.NameColumn) == "" {
		schema.NameColumn = def.NameColumn
	}
	if strings.TrimSpace(schema.ScheduleColumn) == "" {
		schema.ScheduleColumn = def.ScheduleColumn
	}
	if len(schema.PhoneColumns) == 0 {
		schema.PhoneColumns = def.PhoneColumns
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{schema: schema, log: log}
}

// Load processes rows in order. Rows without a usable phone or schedule are
// counted and skipped; duplicates of an already seen phone are dropped.
func (l *Loader) Load(rows []Row) Result {
	var res Result
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		name, _ := row.Get(l.schema.NameColumn)
		schedule, _ := row.Get(l.schema.ScheduleColumn)
		raw := l.phoneField(row)

		p, err := phone.Normalize(raw)
		if err != nil {
			res.RejectedNoPhone++
			l.log.Warn("skipping contact without valid phone", logx.String("name", name), logx.String("raw", raw))
			continue
		}
		schedule = strings.TrimSpace(schedule)
		if schedule == "" {
			res.RejectedNoSchedule++
			l.log.Warn("skipping contact without schedule", logx.String("name", name), logx.String("phone", p))
			continue
		}
		if _, dup := seen[p]; dup {
			l.log.Debug("dropping duplicate phone", logx.String("name", name), logx.String("phone", p))
			continue
		}
		seen[p] = struct{}{}

		if !phone.Plausible(p) {
			l.log.Debug("phone looks implausible; keeping it", logx.String("name", name), logx.String("phone", p))
		}
		res.Contacts = append(res.Contacts, Contact{
			Name:     strings.TrimSpace(name),
			Phone:    p,
			Schedule: schedule,
		})
	}

	if res.RejectedNoPhone > 0 || res.RejectedNoSchedule > 0 {
		l.log.Info("contacts skipped",
			logx.Int("no_phone", res.RejectedNoPhone),
			logx.Int("no_schedule", res.RejectedNoSchedule),
		)
	}
	return res
}

func (l *Loader) phoneField(row Row) string {
	for _, key := range l.schema.PhoneColumns {
		if v, ok := row.Get(key); ok {
			return v
		}
	}
	return ""
}
