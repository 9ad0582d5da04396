// Пакет pool — разбиение storage nodes на active/inactive и round-robin выбор.
//
// Active, inactive и курсор round-robin — одна единица разделяемого состояния,
// защищённая одним sync.Mutex. Health monitor меняет разбиение, обработчики
// create читают его через Next. Сетевые вызовы под мьютексом не выполняются.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// ErrEmpty — пул создаётся без storage nodes.
var ErrEmpty = errors.New("список storage nodes пуст")

// Pool — набор известных storage nodes, разбитый на active и inactive.
type Pool struct {
	mu sync.Mutex

	// order — позиция storage node в исходной конфигурации
	order map[model.StorageAddress]int
	// all — все storage nodes в порядке конфигурации
	all []model.StorageAddress
	// active — доступные storage nodes, отсортированы по order
	active []model.StorageAddress
	// inactive — недоступные storage nodes
	inactive map[model.StorageAddress]bool
	// cursor — позиция в active, а не идентичность storage node
	cursor int
}

// New создаёт пул из статического списка адресов.
// До первого обхода health monitor все storage nodes считаются доступными.
func New(addrs []model.StorageAddress) (*Pool, error) {
	if len(addrs) == 0 {
		return nil, ErrEmpty
	}

	p := &Pool{
		order:    make(map[model.StorageAddress]int, len(addrs)),
		all:      make([]model.StorageAddress, 0, len(addrs)),
		active:   make([]model.StorageAddress, 0, len(addrs)),
		inactive: make(map[model.StorageAddress]bool),
	}

	for i, addr := range addrs {
		if _, dup := p.order[addr]; dup {
			return nil, fmt.Errorf("дублирующийся storage node %s", addr)
		}
		p.order[addr] = i
		p.all = append(p.all, addr)
		p.active = append(p.active, addr)
	}

	return p, nil
}

// Next возвращает следующий active storage node по кругу.
// Возвращает false, если active пуст. Если размер active изменился
// между вызовами, курсор заворачивается по новому размеру.
func (p *Pool) Next() (model.StorageRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.active)
	if n == 0 {
		return model.StorageRecord{}, false
	}

	p.cursor %= n
	addr := p.active[p.cursor]
	p.cursor = (p.cursor + 1) % n

	return model.StorageRecord{Address: addr, Reachable: true}, true
}

// SetReachable переводит storage node в active (ok=true) или inactive (ok=false).
// Возвращает true, если членство изменилось. Неизвестный адрес игнорируется.
func (p *Pool) SetReachable(addr model.StorageAddress, ok bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, known := p.order[addr]
	if !known {
		return false
	}

	wasActive := !p.inactive[addr]
	if wasActive == ok {
		return false
	}

	if ok {
		delete(p.inactive, addr)
		p.active = insertOrdered(p.active, addr, pos, p.order)
	} else {
		p.inactive[addr] = true
		p.active = removeAddr(p.active, addr)
	}

	if len(p.active) == 0 {
		p.cursor = 0
	} else {
		p.cursor %= len(p.active)
	}

	return true
}

// Records возвращает снимок всех storage nodes в порядке конфигурации.
func (p *Pool) Records() []model.StorageRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]model.StorageRecord, 0, len(p.all))
	for _, addr := range p.all {
		records = append(records, model.StorageRecord{Address: addr, Reachable: !p.inactive[addr]})
	}
	return records
}

// Active возвращает снимок active storage nodes в порядке выдачи.
func (p *Pool) Active() []model.StorageRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]model.StorageRecord, 0, len(p.active))
	for _, addr := range p.active {
		records = append(records, model.StorageRecord{Address: addr, Reachable: true})
	}
	return records
}

// Inactive возвращает снимок inactive storage nodes в порядке конфигурации.
func (p *Pool) Inactive() []model.StorageRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]model.StorageRecord, 0, len(p.inactive))
	for _, addr := range p.all {
		if p.inactive[addr] {
			records = append(records, model.StorageRecord{Address: addr, Reachable: false})
		}
	}
	return records
}

// Counts возвращает размеры active и inactive из одного снимка.
func (p *Pool) Counts() (active, inactive int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active), len(p.inactive)
}

// insertOrdered вставляет addr в active, сохраняя порядок конфигурации.
func insertOrdered(active []model.StorageAddress, addr model.StorageAddress, pos int, order map[model.StorageAddress]int) []model.StorageAddress {
	i := 0
	for i < len(active) && order[active[i]] < pos {
		i++
	}
	active = append(active, model.StorageAddress{})
	copy(active[i+1:], active[i:])
	active[i] = addr
	return active
}

// removeAddr удаляет addr из active.
func removeAddr(active []model.StorageAddress, addr model.StorageAddress) []model.StorageAddress {
	for i, a := range active {
		if a == addr {
			return append(active[:i], active[i+1:]...)
		}
	}
	return active
}
