package handler

import (
	"quote-wizard/internal/currency"
	"quote-wizard/internal/model"
	"quote-wizard/internal/render"
	"quote-wizard/internal/wizard"
)

type fieldView struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Kind      model.FieldKind `json:"kind"`
	Required  bool            `json:"required"`
	Min       *float64        `json:"min,omitempty"`
	Max       *float64        `json:"max,omitempty"`
	MinLength int             `json:"min_length,omitempty"`
	Options   []string        `json:"options,omitempty"`
	Default   any             `json:"default,omitempty"`
}

type stepView struct {
	Index  int         `json:"index"`
	Title  string      `json:"title"`
	Fields []fieldView `json:"fields"`
}

type schemaResponse struct {
	Product  model.ProductType     `json:"product"`
	Country  model.Country         `json:"country"`
	Currency model.CurrencyProfile `json:"currency"`
	Steps    []stepView            `json:"steps"`
}

type productsResponse struct {
	Country  model.Country         `json:"country"`
	Currency model.CurrencyProfile `json:"currency"`
	Products []model.ProductType   `json:"products"`
}

type sessionResponse struct {
	ID               string                            `json:"id"`
	Product          model.ProductType                 `json:"product"`
	Country          model.Country                     `json:"country"`
	State            wizard.State                      `json:"state"`
	SubmissionStatus model.SubmissionStatus            `json:"submission_status"`
	StepIndex        int                               `json:"step_index"`
	StepCount        int                               `json:"step_count"`
	Step             *stepView                         `json:"step,omitempty"`
	Answers          map[string]any                    `json:"answers"`
	Errors           map[string]*model.ValidationError `json:"errors"`
	Failure          string                            `json:"failure,omitempty"`
	Retryable        bool                              `json:"retryable,omitempty"`
	Currency         model.CurrencyProfile             `json:"currency"`
	Summary          []wizard.SummaryItem              `json:"summary"`
	Recommendation   *render.Display                   `json:"recommendation,omitempty"`
}

func productsView(c model.Country, products []model.ProductType) (productsResponse, error) {
	p, err := currency.ProfileFor(c)
	if err != nil {
		return productsResponse{}, err
	}
	if products == nil {
		products = []model.ProductType{}
	}
	return productsResponse{Country: c, Currency: p, Products: products}, nil
}

func schemaView(s *model.FieldSchema) (schemaResponse, error) {
	p, err := currency.ProfileFor(s.Country)
	if err != nil {
		return schemaResponse{}, err
	}
	out := schemaResponse{Product: s.Product, Country: s.Country, Currency: p}
	for i := range s.Steps {
		out.Steps = append(out.Steps, toStepView(i, s.Steps[i], p))
	}
	return out, nil
}

func toStepView(idx int, st model.Step, p model.CurrencyProfile) stepView {
	v := stepView{Index: idx, Title: st.Title, Fields: make([]fieldView, 0, len(st.Fields))}
	for _, f := range st.Fields {
		v.Fields = append(v.Fields, fieldView{
			Key:       f.Key,
			Label:     f.DisplayLabel(p),
			Kind:      f.Kind,
			Required:  f.Required,
			Min:       f.Min,
			Max:       f.Max,
			MinLength: f.MinLength,
			Options:   f.Options,
			Default:   f.Default,
		})
	}
	return v
}

func sessionView(snap wizard.Snapshot) sessionResponse {
	out := sessionResponse{
		State:    snap.State,
		Currency: snap.Profile,
		Summary:  snap.Summary(),
	}
	if snap.Session == nil {
		return out
	}
	s := snap.Session
	out.ID = s.ID
	out.Product = s.Product
	out.Country = s.Country
	out.SubmissionStatus = s.Status
	out.StepIndex = s.CurrentStepIndex
	out.Answers = s.Answers
	out.Errors = s.Errors
	out.Failure = snap.Failure
	out.Retryable = snap.Retryable
	if snap.Schema != nil {
		out.StepCount = snap.Schema.StepCount()
	}
	if st := snap.Step(); st != nil {
		v := toStepView(s.CurrentStepIndex, *st, snap.Profile)
		out.Step = &v
	}
	switch {
	case snap.State == wizard.StateSucceeded:
		d := render.Render(snap.Result, snap.Profile)
		out.Recommendation = &d
	case snap.State == wizard.StateFailed && snap.NoRecommendation:
		d := render.Render(nil, snap.Profile)
		out.Recommendation = &d
	}
	return out
}
