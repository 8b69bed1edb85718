package entity

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MaxNameLength = 256
	MaxTagLength  = 64
)

// Entity - общий интерфейс всех синхронизируемых сущностей
type Entity interface {
	GetID() int
	SetID(id int)
	GetType() Type
	Validate() error
	writeHash(w *hashWriter)
}

type SceneType string

const (
	SceneTypeScene SceneType = "scene"
	SceneTypeGroup SceneType = "group"
)

// Scene - сцена или группа сцен в дереве проекта
type Scene struct {
	ID        int       `json:"id" yaml:"id"`
	SceneType SceneType `json:"sceneType" yaml:"sceneType"`
	Name      string    `json:"name" yaml:"name"`
	Order     int       `json:"order" yaml:"order"`
	Path      []int     `json:"path" yaml:"path"`
	Content   string    `json:"content" yaml:"content"`
}

func (s *Scene) GetID() int    { return s.ID }
func (s *Scene) SetID(id int)  { s.ID = id }
func (s *Scene) GetType() Type { return TypeScene }

func (s *Scene) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ID, validation.Min(0)),
		validation.Field(&s.SceneType, validation.Required, validation.In(SceneTypeScene, SceneTypeGroup)),
		validation.Field(&s.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&s.Order, validation.Min(0)),
		validation.Field(&s.Path, validation.Each(validation.Min(0))),
	)
}

func (s *Scene) writeHash(w *hashWriter) {
	w.String(string(s.SceneType))
	w.String(s.Name)
	w.Int(s.Order)
	w.Ints(s.Path)
	w.String(s.Content)
}

// Note - заметка проекта
type Note struct {
	ID      int       `json:"id" yaml:"id"`
	Created time.Time `json:"created" yaml:"created"`
	Content string    `json:"content" yaml:"content"`
}

func (n *Note) GetID() int    { return n.ID }
func (n *Note) SetID(id int)  { n.ID = id }
func (n *Note) GetType() Type { return TypeNote }

func (n *Note) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.ID, validation.Min(0)),
		validation.Field(&n.Created, validation.Required),
		validation.Field(&n.Content, validation.Required),
	)
}

func (n *Note) writeHash(w *hashWriter) {
	w.Time(n.Created)
	w.String(n.Content)
}

// TimelineEvent - событие на таймлайне
type TimelineEvent struct {
	ID      int    `json:"id" yaml:"id"`
	Order   int    `json:"order" yaml:"order"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Content string `json:"content" yaml:"content"`
}

func (e *TimelineEvent) GetID() int    { return e.ID }
func (e *TimelineEvent) SetID(id int)  { e.ID = id }
func (e *TimelineEvent) GetType() Type { return TypeTimelineEvent }

func (e *TimelineEvent) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.ID, validation.Min(0)),
		validation.Field(&e.Order, validation.Min(0)),
		validation.Field(&e.Date, validation.Length(0, MaxNameLength)),
		validation.Field(&e.Content, validation.Required),
	)
}

func (e *TimelineEvent) writeHash(w *hashWriter) {
	w.Int(e.Order)
	w.String(e.Date)
	w.String(e.Content)
}

type EntryType string

const (
	EntryTypePerson EntryType = "person"
	EntryTypePlace  EntryType = "place"
	EntryTypeThing  EntryType = "thing"
	EntryTypeEvent  EntryType = "event"
	EntryTypeIdea   EntryType = "idea"
)

// EntryImage - изображение статьи, base64 (url-safe)
type EntryImage struct {
	Base64        string `json:"base64" yaml:"base64"`
	FileExtension string `json:"fileExtension" yaml:"fileExtension"`
}

// EncyclopediaEntry - статья энциклопедии мира
type EncyclopediaEntry struct {
	ID        int         `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	EntryType EntryType   `json:"entryType" yaml:"entryType"`
	Text      string      `json:"text" yaml:"text"`
	Tags      []string    `json:"tags" yaml:"tags"`
	Image     *EntryImage `json:"image,omitempty" yaml:"image,omitempty"`
}

func (e *EncyclopediaEntry) GetID() int    { return e.ID }
func (e *EncyclopediaEntry) SetID(id int)  { e.ID = id }
func (e *EncyclopediaEntry) GetType() Type { return TypeEncyclopediaEntry }

func (e *EncyclopediaEntry) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.ID, validation.Min(0)),
		validation.Field(&e.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&e.EntryType, validation.Required,
			validation.In(EntryTypePerson, EntryTypePlace, EntryTypeThing, EntryTypeEvent, EntryTypeIdea)),
		validation.Field(&e.Tags, validation.Each(validation.Required, validation.Length(1, MaxTagLength))),
		validation.Field(&e.Image),
	)
}

func (i EntryImage) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Base64, validation.Required),
		validation.Field(&i.FileExtension, validation.Required, validation.In("jpg", "png")),
	)
}

func (e *EncyclopediaEntry) writeHash(w *hashWriter) {
	w.String(e.Name)
	w.String(string(e.EntryType))
	w.String(e.Text)
	w.Strings(e.Tags)
	w.Bool(e.Image != nil)
	if e.Image != nil {
		w.String(e.Image.Base64)
		w.String(e.Image.FileExtension)
	}
}

// SceneDraft - именованный снимок содержимого сцены
type SceneDraft struct {
	ID      int       `json:"id" yaml:"id"`
	SceneID int       `json:"sceneId" yaml:"sceneId"`
	Name    string    `json:"name" yaml:"name"`
	Created time.Time `json:"created" yaml:"created"`
	Content string    `json:"content" yaml:"content"`
}

func (d *SceneDraft) GetID() int    { return d.ID }
func (d *SceneDraft) SetID(id int)  { d.ID = id }
func (d *SceneDraft) GetType() Type { return TypeSceneDraft }

func (d *SceneDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Min(0)),
		validation.Field(&d.SceneID, validation.Min(0)),
		validation.Field(&d.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&d.Created, validation.Required),
	)
}

func (d *SceneDraft) writeHash(w *hashWriter) {
	w.Int(d.SceneID)
	w.String(d.Name)
	w.Time(d.Created)
	w.String(d.Content)
}
