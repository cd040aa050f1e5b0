package watch

import (
	"strings"
	"time"
)

// Pulse lights up on every gateway event and fades when the stream goes quiet.
type Pulse struct {
	level int
	last  time.Time
}

const pulseWidth = 5

func (p *Pulse) Hit(at time.Time) {
	p.level = pulseWidth
	p.last = at
}

// Decay fades the pulse by one dot for every two seconds of silence.
func (p *Pulse) Decay(now time.Time) {
	if p.level == 0 {
		return
	}
	level := pulseWidth - int(now.Sub(p.last)/(2*time.Second))
	if level < 0 {
		level = 0
	}
	p.level = level
}

func (p Pulse) Level() int { return p.level }

func (p Pulse) Last() time.Time { return p.last }

func (p Pulse) Render(theme Theme) string {
	var b strings.Builder
	for i := range pulseWidth {
		if i < p.level {
			b.WriteString(theme.PulseActive.Render("●"))
		} else {
			b.WriteString(theme.PulseInactive.Render("○"))
		}
	}
	return b.String()
}
