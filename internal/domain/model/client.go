package model

import "time"

// ClientAccount — учётная запись клиента, закреплённая за одним storage node.
// После создания Storage и RemoteUUID не меняются: клиент не мигрирует между storage nodes.
type ClientAccount struct {
	// Login — уникальный ключ в реестре
	Login string
	// Password сравнивается побайтно, без хэширования
	Password string
	// ClientID — идентификатор клиента, переданный в create_client
	ClientID string
	// RemoteUUID — идентификатор, выданный storage node
	RemoteUUID string
	// Storage — адрес назначенного storage node
	Storage StorageAddress
	// CreatedAt — время регистрации (UTC)
	CreatedAt time.Time
}
