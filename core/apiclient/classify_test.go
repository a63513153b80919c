package apiclient

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path        string
		want        string
		wantTracked bool
	}{
		{path: "/api/materials/42", want: "materials", wantTracked: true},
		{path: "/api/Courses?page=2", want: "courses", wantTracked: true},
		{path: "/fallback/users/7/roles", want: "users", wantTracked: true},
		{path: "applications", want: "applications", wantTracked: true},
		{path: "/API/students#top", want: "students", wantTracked: true},
		{path: "/api/auth/login"},
		{path: "/api/health"},
		{path: "/logout"},
		{path: "/api/"},
		{path: "/"},
		{path: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, tracked := Classify(tt.path)
			if got != tt.want || tracked != tt.wantTracked {
				t.Errorf("Classify(%q) = (%q, %v), want (%q, %v)", tt.path, got, tracked, tt.want, tt.wantTracked)
			}
		})
	}
}
