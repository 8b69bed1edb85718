package entity

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Hash вычисляет хэш содержимого сущности.
// Поля кодируются в фиксированном порядке с префиксом длины, поэтому
// результат не зависит от платформы и порядка ключей в JSON.
func Hash(e Entity) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// New256 возвращает ошибку только для слишком длинного ключа
		panic(err)
	}

	w := &hashWriter{h: h}
	w.String(string(e.GetType()))
	w.Int(e.GetID())
	e.writeHash(w)

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter struct {
	h   hash.Hash
	buf [8]byte
}

func (w *hashWriter) Int(v int) {
	binary.BigEndian.PutUint64(w.buf[:], uint64(int64(v)))
	_, _ = w.h.Write(w.buf[:])
}

func (w *hashWriter) Bool(v bool) {
	if v {
		w.Int(1)
		return
	}
	w.Int(0)
}

func (w *hashWriter) String(s string) {
	w.Int(len(s))
	_, _ = io.WriteString(w.h, s)
}

func (w *hashWriter) Ints(v []int) {
	w.Int(len(v))
	for _, i := range v {
		w.Int(i)
	}
}

func (w *hashWriter) Strings(v []string) {
	w.Int(len(v))
	for _, s := range v {
		w.String(s)
	}
}

func (w *hashWriter) Time(t time.Time) {
	w.String(t.UTC().Format(time.RFC3339Nano))
}
