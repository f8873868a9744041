package record

import "github.com/cuemby/beandb/pkg/codec"

// Pair is a minimal two-int Bean, the shape used by the commit/rollback/redo
// scenarios: a record with two int fields, value1 and value2.
type Pair struct {
	Value1 int64
	Value2 int64
}

const pairTypeID = 1

func (p *Pair) TypeID() uint32 { return pairTypeID }
func (p *Pair) InitSize() int  { return 16 }
func (p *Pair) MaxSize() int   { return 32 }

func (p *Pair) Marshal(o *codec.Octets) error {
	codec.MarshalRecord(o, func(o *codec.Octets) {
		o.MarshalTag(1, codec.KindInt)
		o.MarshalVarint(p.Value1)
		o.MarshalTag(2, codec.KindInt)
		o.MarshalVarint(p.Value2)
	})
	return nil
}

func (p *Pair) Unmarshal(o *codec.Octets) error {
	return codec.UnmarshalRecord(o, func(o *codec.Octets, tag uint32, kind codec.Kind) error {
		switch tag {
		case 1:
			v, err := o.UnmarshalVarint()
			p.Value1 = v
			return err
		case 2:
			v, err := o.UnmarshalVarint()
			p.Value2 = v
			return err
		}
		return o.SkipField(kind)
	})
}

func (p *Pair) Create() Bean { return &Pair{} }
func (p *Pair) Clone() Bean  { c := *p; return &c }

func (p *Pair) Equal(other Bean) bool {
	o, ok := other.(*Pair)
	return ok && *o == *p
}

// Profile is a richer demo Bean exercising a nested Bean field, a string
// list and a string/int map, to exercise every field kind the codec
// supports.
type Profile struct {
	Name    string
	Friend  *Pair
	Tags    []string
	Scores  map[string]int64
}

const profileTypeID = 2

func (p *Profile) TypeID() uint32 { return profileTypeID }
func (p *Profile) InitSize() int  { return 64 }
func (p *Profile) MaxSize() int   { return 4096 }

func (p *Profile) Marshal(o *codec.Octets) error {
	codec.MarshalRecord(o, func(o *codec.Octets) {
		o.MarshalTag(1, codec.KindString)
		o.MarshalString(p.Name)
		if p.Friend != nil {
			sub := codec.NewOctets()
			if err := p.Friend.Marshal(sub); err == nil {
				o.MarshalTag(2, codec.KindBean)
				o.MarshalOctets(sub.Bytes())
			}
		}
		if p.Tags != nil {
			o.MarshalStringList(3, p.Tags)
		}
		if p.Scores != nil {
			o.MarshalStringIntMap(4, p.Scores)
		}
	})
	return nil
}

func (p *Profile) Unmarshal(o *codec.Octets) error {
	*p = Profile{}
	return codec.UnmarshalRecord(o, func(o *codec.Octets, tag uint32, kind codec.Kind) error {
		switch tag {
		case 1:
			v, err := o.UnmarshalString()
			p.Name = v
			return err
		case 2:
			raw, err := o.UnmarshalOctets()
			if err != nil {
				return err
			}
			friend := &Pair{}
			if err := friend.Unmarshal(codec.Wrap(raw)); err != nil {
				return err
			}
			p.Friend = friend
			return nil
		case 3:
			v, err := o.UnmarshalStringList()
			p.Tags = v
			return err
		case 4:
			v, err := o.UnmarshalStringIntMap()
			p.Scores = v
			return err
		}
		return o.SkipField(kind)
	})
}

func (p *Profile) Create() Bean { return &Profile{} }

func (p *Profile) Clone() Bean {
	c := &Profile{Name: p.Name}
	if p.Friend != nil {
		f := *p.Friend
		c.Friend = &f
	}
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	if p.Scores != nil {
		c.Scores = make(map[string]int64, len(p.Scores))
		for k, v := range p.Scores {
			c.Scores[k] = v
		}
	}
	return c
}

func (p *Profile) Equal(other Bean) bool {
	o, ok := other.(*Profile)
	if !ok || o.Name != p.Name || len(o.Tags) != len(p.Tags) || len(o.Scores) != len(p.Scores) {
		return false
	}
	if (o.Friend == nil) != (p.Friend == nil) {
		return false
	}
	if p.Friend != nil && *o.Friend != *p.Friend {
		return false
	}
	for i := range p.Tags {
		if o.Tags[i] != p.Tags[i] {
			return false
		}
	}
	for k, v := range p.Scores {
		if o.Scores[k] != v {
			return false
		}
	}
	return true
}
