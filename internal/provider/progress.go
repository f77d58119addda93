package provider

import "io"

// progressReader reports the fraction of an expected body length read so far.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.report != nil && p.total > 0 && n > 0 {
		p.report(min(float64(p.read)/float64(p.total), 1))
	}
	return n, err
}
