package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIDL(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		want    string
		wantErr bool
	}{
		{
			name: "pre blob with entities",
			page: `<div><pre id="xidlx">{&quot;a&quot;:1}</pre></div>`,
			want: `{"a":1}`,
		},
		{
			name: "pre blob across lines with other attributes",
			page: "<PRE data-x=\"1\" id=\"anchor-idl-json\" class=\"c\">\n{\"name\": \"p\",\n \"instructions\": []}\n</PRE>",
			want: `{"name":"p","instructions":[]}`,
		},
		{
			name: "next data script",
			page: `<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"idl":{"name":"from-next"}}}}</script>`,
			want: `{"name":"from-next"}`,
		},
		{
			name: "window assignment",
			page: `<script>window.__NEXT_DATA__ = {"props":{"pageProps":{"idl":{"name":"w"}}}};</script>`,
			want: `{"name":"w"}`,
		},
		{
			name: "pre with invalid json falls through to next data",
			page: `<pre id="idl">not json</pre><script id="__NEXT_DATA__">{"props":{"pageProps":{"idl":{"name":"n"}}}}</script>`,
			want: `{"name":"n"}`,
		},
		{
			name:    "next data without idl",
			page:    `<script id="__NEXT_DATA__">{"props":{"pageProps":{}}}</script>`,
			wantErr: true,
		},
		{
			name: "script blob without idl falls through to window assignment",
			page: `<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{}}}</script>` +
				`<script>window.__NEXT_DATA__ = {"props":{"pageProps":{"idl":{"name":"late"}}}};</script>`,
			want: `{"name":"late"}`,
		},
		{
			name: "malformed script blob falls through to window assignment",
			page: `<script id="__NEXT_DATA__">{not json</script>` +
				`<script>window.__NEXT_DATA__ = {"props":{"pageProps":{"idl":{"name":"w2"}}}};</script>`,
			want: `{"name":"w2"}`,
		},
		{
			name:    "no markers",
			page:    `<html><body>nothing here</body></html>`,
			wantErr: true,
		},
		{
			name:    "pre without idl id",
			page:    `<pre id="source">{"a":1}</pre>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractIDL(tt.page)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
