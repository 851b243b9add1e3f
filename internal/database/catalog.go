package database

import "context"

const getDish = `
SELECT id, name, price, photo_url,
       available_mon, available_tue, available_wed, available_thu,
       available_fri, available_sat, available_sun, exhausted
FROM dishes
WHERE id = $1
`

func (q *Queries) GetDish(ctx context.Context, id int64) (Dish, error) {
	row := q.db.QueryRow(ctx, getDish, id)
	var d Dish
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Price,
		&d.PhotoUrl,
		&d.AvailableMon,
		&d.AvailableTue,
		&d.AvailableWed,
		&d.AvailableThu,
		&d.AvailableFri,
		&d.AvailableSat,
		&d.AvailableSun,
		&d.Exhausted,
	)
	return d, err
}

const listDishes = `
SELECT id, name, price, photo_url,
       available_mon, available_tue, available_wed, available_thu,
       available_fri, available_sat, available_sun, exhausted
FROM dishes
WHERE id > 0
ORDER BY name
`

// ListDishes excludes the legacy placeholder row (id 0), which only exists to
// keep old extra lines resolvable.
func (q *Queries) ListDishes(ctx context.Context) ([]Dish, error) {
	rows, err := q.db.Query(ctx, listDishes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Dish
	for rows.Next() {
		var d Dish
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Price,
			&d.PhotoUrl,
			&d.AvailableMon,
			&d.AvailableTue,
			&d.AvailableWed,
			&d.AvailableThu,
			&d.AvailableFri,
			&d.AvailableSat,
			&d.AvailableSun,
			&d.Exhausted,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const getExtra = `
SELECT id, name, price, available, photo_url
FROM extras
WHERE id = $1
`

func (q *Queries) GetExtra(ctx context.Context, id int64) (Extra, error) {
	row := q.db.QueryRow(ctx, getExtra, id)
	var e Extra
	err := row.Scan(&e.ID, &e.Name, &e.Price, &e.Available, &e.PhotoUrl)
	return e, err
}

const listExtras = `
SELECT id, name, price, available, photo_url
FROM extras
ORDER BY name
`

func (q *Queries) ListExtras(ctx context.Context) ([]Extra, error) {
	rows, err := q.db.Query(ctx, listExtras)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Extra
	for rows.Next() {
		var e Extra
		if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.Available, &e.PhotoUrl); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
