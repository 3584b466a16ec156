package domain

// OrderSide classifies a swap from the base asset's point of view.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Orientation records how the data source's maker/taker orientation relates
// to the requested pair order.
type Orientation string

const (
	OrientationUnknown  Orientation = "unknown"
	OrientationNatural  Orientation = "natural"
	OrientationInverted Orientation = "inverted"
)
