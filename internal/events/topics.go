package events

// Topic names shared by every service. The topic is the message type.
const (
	TopicOrderRequested     = "order.requested"
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status-changed"
	TopicInventoryReserved  = "inventory.reserved"
	TopicInventoryRejected  = "inventory.rejected"
	TopicPaymentRequested   = "payment.requested"
	TopicPaymentCompleted   = "payment.completed"
	TopicPaymentFailed      = "payment.failed"
	TopicProductUpsertCmd   = "catalog.product-upsert-command"
	TopicProductUpserted    = "catalog.product-upserted"
	TopicUserUpsertCmd      = "user.upsert-command"
	TopicUserUpserted       = "user.upserted"
)

// AllTopics lists every topic in the saga, in causal order.
var AllTopics = []string{
	TopicProductUpsertCmd,
	TopicProductUpserted,
	TopicUserUpsertCmd,
	TopicUserUpserted,
	TopicOrderRequested,
	TopicOrderCreated,
	TopicInventoryReserved,
	TopicInventoryRejected,
	TopicPaymentRequested,
	TopicPaymentCompleted,
	TopicPaymentFailed,
	TopicOrderStatusChanged,
}
