package pluggable_test

import (
	"fmt"

	"github.com/jrsteele09/go-pluggable-store/converter"
	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/jrsteele09/go-pluggable-store/pluggable"
)

func Example() {
	base, err := kvstore.New()
	if err != nil {
		panic(err)
	}
	defer base.Close()

	enc, dec := converter.NewBase64()
	p, err := pluggable.New(base, pluggable.WithEncoder(enc), pluggable.WithDecoder(dec))
	if err != nil {
		panic(err)
	}
	defer p.Close()

	err = p.Edit().
		PutString("key1", "hoge").
		PutInt("key2", 68).
		PutBool("key3", true).
		Commit()
	if err != nil {
		panic(err)
	}

	s, _ := p.GetString("key1", "")
	i, _ := p.GetInt("key2", 0)
	b, _ := p.GetBool("key3", false)
	fmt.Println(s, i, b)

	physical, _ := base.GetString("a2V5MQ==", "")
	fmt.Println(physical)
	// Output:
	// hoge 68 true
	// aG9nZQ==
}
