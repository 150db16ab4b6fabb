package models

const (
	StatusProcessing = "processing"
	StatusPaid       = "paid"
	StatusComplete   = "complete"
	StatusCancelled  = "cancelled"
)

// TimeLayout — формат хранения дат в SQLite, сортируется лексикографически.
const TimeLayout = "2006-01-02 15:04:05"

const DateLayout = "2006-01-02"

const (
	// DefaultHoldTTLMinutes сколько минут держится неоплаченная бронь
	DefaultHoldTTLMinutes = 30

	// DefaultMaxAdvanceDays максимальный горизонт бронирования
	DefaultMaxAdvanceDays = 365

	// DefaultCalendarTTL время жизни кэша календаря доступности в секундах
	DefaultCalendarTTL = 60

	// DefaultCalendarDays окно календаря доступности по умолчанию
	DefaultCalendarDays = 7

	// MinFeeHours минимальное количество тарифицируемых часов
	MinFeeHours = 1
)

// ActiveStatuses are the statuses that block a slot's interval.
// Cancelled and Complete reservations never conflict with new ones.
var ActiveStatuses = []string{StatusProcessing, StatusPaid}
