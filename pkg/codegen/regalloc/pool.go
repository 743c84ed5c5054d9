package regalloc

import "github.com/samber/lo"

// pool tracks which physical registers are taken and by whom. One pool
// belongs to one allocation run.
type pool struct {
	regs  []string
	owner map[string]string // register -> symbolic name
}

func newPool(regs []string) *pool {
	return &pool{
		regs:  append([]string(nil), regs...),
		owner: make(map[string]string, len(regs)),
	}
}

// take hands out the lowest-numbered free register.
func (p *pool) take(name string) (string, bool) {
	reg, ok := lo.Find(p.regs, func(r string) bool {
		_, busy := p.owner[r]
		return !busy
	})
	if !ok {
		return "", false
	}
	p.owner[reg] = name
	return reg, true
}

// claim marks reg as owned by name regardless of order.
func (p *pool) claim(reg, name string) {
	p.owner[reg] = name
}

func (p *pool) release(reg string) {
	delete(p.owner, reg)
}

func (p *pool) ownerOf(reg string) (string, bool) {
	name, ok := p.owner[reg]
	return name, ok
}

func (p *pool) inUse() int {
	return len(p.owner)
}
