package datamap

var (
	users       = NewTable("users")
	userID      = Col[int64](users, "id")
	userName    = Col[string](users, "name")
	userDeleted = Col[string](users, "deleted_at")

	pets     = NewTable("pets")
	petID    = Col[int64](pets, "id")
	petOwner = Col[int64](pets, "owner_id")
	petName  = Col[string](pets, "name")

	shapes      = NewTable("shapes")
	shapeID     = Col[int64](shapes, "id")
	shapeKind   = Col[string](shapes, "kind")
	shapeRadius = Col[float64](shapes, "radius")
	shapeWidth  = Col[float64](shapes, "width")
	shapeHeight = Col[float64](shapes, "height")
)

type User struct {
	ID   int64
	Name string
}

type Pet struct {
	ID   int64
	Name string
}

var userMapper = NewMapper(func(r Row) User {
	return User{ID: Get(r, userID), Name: Get(r, userName)}
}, userID, userName)

var petMapper = Nullable(NewMapper(func(r Row) Pet {
	return Pet{ID: Get(r, petID), Name: Get(r, petName)}
}, petID, petName))

// Shape is a closed sum type: only Circle and Rect implement it.
type Shape interface{ isShape() }

type Circle struct {
	ID     int64
	Radius float64
}

type Rect struct {
	ID            int64
	Width, Height float64
}

func (Circle) isShape() {}
func (Rect) isShape()   {}

var circleMapper = NewMapper(func(r Row) Circle {
	return Circle{ID: Get(r, shapeID), Radius: Get(r, shapeRadius)}
}, shapeID, shapeRadius)

var rectMapper = NewMapper(func(r Row) Rect {
	return Rect{ID: Get(r, shapeID), Width: Get(r, shapeWidth), Height: Get(r, shapeHeight)}
}, shapeID, shapeWidth, shapeHeight)

var shapeMapper = Sum(shapeKind,
	Case("circle", Map(circleMapper, func(c Circle) Shape { return c })),
	Case("rect", Map(rectMapper, func(r Rect) Shape { return r })),
)

// rowFromShape is the inverse of shapeMapper.
func rowFromShape(s Shape) Row {
	switch s := s.(type) {
	case Circle:
		return NewRow(Set(shapeID, s.ID), Set(shapeKind, "circle"), Set(shapeRadius, s.Radius),
			SetNull(shapeWidth), SetNull(shapeHeight))
	case Rect:
		return NewRow(Set(shapeID, s.ID), Set(shapeKind, "rect"), SetNull(shapeRadius),
			Set(shapeWidth, s.Width), Set(shapeHeight, s.Height))
	}
	panic("unreachable")
}
