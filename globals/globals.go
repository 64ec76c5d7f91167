package globals

// Context keys
type ContextKey string

const RoleKey ContextKey = "role"
const UserIDKey ContextKey = "userId"

// Collection and channel names shared by the Mongo, Redis and AMQP adapters.
const (
	BookingsCollection      = "bookings"
	QueueCollection         = "queue_entries"
	LocationsCollection     = "locations"
	UsersCollection         = "users"
	VehiclesCollection      = "vehicles"
	ServicesCollection      = "services"
	NotificationsCollection = "notifications"

	BookingEventsChannel   = "booking-events"
	NotificationsChannel   = "notifications"
	BookingTopicExchange   = "booking_topic"
	LocationFanoutExchange = "location_fanout"
)
