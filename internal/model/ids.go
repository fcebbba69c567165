package model

import "encoding/json"

// The storefront API emits document ids as "_id"; some endpoints and older
// cached payloads use "id". Both are accepted on decode.

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.AltID
	}
	return nil
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = aux.AltID
	}
	return nil
}
