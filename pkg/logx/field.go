package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field adds one key to a log record. Later fields overwrite earlier ones.
type Field func(*zerolog.Event)

func String(key, val string) Field { return func(e *zerolog.Event) { e.Str(key, val) } }

func Int(key string, val int) Field { return func(e *zerolog.Event) { e.Int(key, val) } }

func Int64(key string, val int64) Field { return func(e *zerolog.Event) { e.Int64(key, val) } }

func Bool(key string, val bool) Field { return func(e *zerolog.Event) { e.Bool(key, val) } }

func Duration(key string, val time.Duration) Field { return func(e *zerolog.Event) { e.Dur(key, val) } }

func Any(key string, val any) Field { return func(e *zerolog.Event) { e.Interface(key, val) } }

// Err attaches err under "err". A nil error adds nothing.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}
