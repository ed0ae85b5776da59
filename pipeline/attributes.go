package pipeline

import (
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
)

// AttributesCell is the observable state the display layer follows. Set
// only notifies subscribers when age, gender or mood changed. A slow
// subscriber sees the latest value, intermediate ones are dropped.
type AttributesCell struct {
	mu      sync.Mutex
	current model.ExtractedAttributes
	has     bool
	version uint64
	subs    map[int]chan model.ExtractedAttributes
	nextID  int
}

func NewAttributesCell() *AttributesCell {
	return &AttributesCell{subs: map[int]chan model.ExtractedAttributes{}}
}

// Set stores attrs and reports whether it differed from the previous value.
func (c *AttributesCell) Set(attrs model.ExtractedAttributes) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := !c.has || !sameAttributes(c.current, attrs)
	c.current = attrs
	c.has = true
	if !changed {
		return false
	}

	c.version++
	for _, ch := range c.subs {
		select {
		case ch <- attrs:
		default:
			// Replace the unread value with the latest one
			select {
			case <-ch:
			default:
			}
			ch <- attrs
		}
	}
	return true
}

func (c *AttributesCell) Get() (model.ExtractedAttributes, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.has
}

func (c *AttributesCell) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Subscribe returns a channel of changes and a cancel func that closes it.
func (c *AttributesCell) Subscribe() (<-chan model.ExtractedAttributes, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan model.ExtractedAttributes, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func sameAttributes(a, b model.ExtractedAttributes) bool {
	return a.Age == b.Age && a.Gender == b.Gender && a.Mood == b.Mood && a.HasMood == b.HasMood
}
