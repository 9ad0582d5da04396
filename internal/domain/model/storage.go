// Пакет model — доменные сущности Balancer.
package model

import (
	"fmt"
	"net"
	"strconv"
)

// StorageAddress — сетевой адрес storage node.
// Сравнимый тип: используется как ключ map.
type StorageAddress struct {
	Host string
	Port int
}

// String возвращает адрес в формате host:port.
func (a StorageAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseStorageAddress разбирает строку host:port.
func ParseStorageAddress(s string) (StorageAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return StorageAddress{}, fmt.Errorf("некорректный адрес storage node %q: %w", s, err)
	}
	if host == "" {
		return StorageAddress{}, fmt.Errorf("некорректный адрес storage node %q: пустой host", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return StorageAddress{}, fmt.Errorf("некорректный порт storage node %q", s)
	}
	return StorageAddress{Host: host, Port: port}, nil
}

// StorageRecord — состояние одного storage node.
// Reachable — результат последнего ping, а не истина в последней инстанции.
type StorageRecord struct {
	Address   StorageAddress
	Reachable bool
}
