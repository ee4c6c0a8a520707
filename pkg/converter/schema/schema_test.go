package schema_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stackvity/activity-logger/pkg/converter/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validActivity = `<activity><userName>Williamson</userName><websiteName>xyz.com</websiteName><activityTypeCode>002</activityTypeCode><loggedInTime>2020-01-13</loggedInTime><number_of_views>10</number_of_views></activity>`

func loadActivitySchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.CompileFile("testdata/activity.xsd")
	require.NoError(t, err)
	return s
}

func TestValidate_ActivitySchema(t *testing.T) {
	s := loadActivitySchema(t)

	testCases := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "valid", doc: validActivity},
		{
			name:    "missing userName",
			doc:     `<activity><websiteName>xyz.com</websiteName><loggedInTime>2020-01-13</loggedInTime></activity>`,
			wantErr: `missing required element "userName"`,
		},
		{
			name:    "bad date",
			doc:     `<activity><userName>a</userName><websiteName>b</websiteName><loggedInTime>13/01/2020</loggedInTime></activity>`,
			wantErr: "is not a valid date",
		},
		{
			name:    "negative views",
			doc:     `<activity><userName>a</userName><websiteName>b</websiteName><loggedInTime>2020-01-13</loggedInTime><number_of_views>-1</number_of_views></activity>`,
			wantErr: "nonNegativeInteger",
		},
		{
			name:    "unknown element",
			doc:     `<activity><userName>a</userName><websiteName>b</websiteName><loggedInTime>2020-01-13</loggedInTime><extra/></activity>`,
			wantErr: `unexpected element "extra"`,
		},
		{
			name:    "duplicate element",
			doc:     `<activity><userName>a</userName><userName>a</userName><websiteName>b</websiteName><loggedInTime>2020-01-13</loggedInTime></activity>`,
			wantErr: "appears more than once",
		},
		{
			name:    "wrong root",
			doc:     `<event/>`,
			wantErr: "not a declared root element",
		},
		{
			name:    "malformed",
			doc:     `<activity><userName>a</activity>`,
			wantErr: "/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.NewValidator().ValidateBytes([]byte(tc.doc))
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrSchemaViolation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_SequenceOrderAndOccurs(t *testing.T) {
	s, err := schema.Compile(strings.NewReader(`<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="batch" type="BatchType"/>
  <xs:complexType name="BatchType">
    <xs:sequence>
      <xs:element name="source" type="xs:token"/>
      <xs:element ref="entry" minOccurs="1" maxOccurs="unbounded"/>
    </xs:sequence>
    <xs:attribute name="version" type="xs:int" use="required"/>
  </xs:complexType>
  <xs:element name="entry" type="Level"/>
  <xs:simpleType name="Level">
    <xs:restriction base="xs:string">
      <xs:enumeration value="info"/>
      <xs:enumeration value="warn"/>
    </xs:restriction>
  </xs:simpleType>
</xs:schema>`))
	require.NoError(t, err)

	ok := `<batch version="1"><source>a</source><entry>info</entry><entry>warn</entry></batch>`
	assert.NoError(t, s.NewValidator().ValidateBytes([]byte(ok)))

	outOfOrder := `<batch version="1"><entry>info</entry><source>a</source></batch>`
	assert.ErrorContains(t, s.NewValidator().ValidateBytes([]byte(outOfOrder)), `expected element "source"`)

	noAttr := `<batch><source>a</source><entry>info</entry></batch>`
	assert.ErrorContains(t, s.NewValidator().ValidateBytes([]byte(noAttr)), `required attribute "version"`)

	badEnum := `<batch version="1"><source>a</source><entry>debug</entry></batch>`
	assert.ErrorContains(t, s.NewValidator().ValidateBytes([]byte(badEnum)), "enumerated")

	noEntries := `<batch version="1"><source>a</source></batch>`
	assert.ErrorContains(t, s.NewValidator().ValidateBytes([]byte(noEntries)), `missing required element "entry"`)
}

func TestCompile_RejectsUnsupportedConstructs(t *testing.T) {
	testCases := map[string]string{
		"choice": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element name="a"><xs:complexType><xs:choice/></xs:complexType></xs:element></xs:schema>`,
		"unknown type": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element name="a" type="Missing"/></xs:schema>`,
		"not a schema": `<root/>`,
		"no elements":  `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"/>`,
		"bad occurs": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element name="a"><xs:complexType><xs:sequence><xs:element name="b" minOccurs="2" maxOccurs="1"/></xs:sequence></xs:complexType></xs:element></xs:schema>`,
		"malformed":  `<xs:schema`,
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := schema.Compile(strings.NewReader(doc))
			assert.ErrorIs(t, err, schema.ErrSchemaCompile)
		})
	}
}

func TestSchema_ConcurrentValidators(t *testing.T) {
	s := loadActivitySchema(t)

	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := validActivity
			if i%2 == 1 {
				doc = `<activity><websiteName>x</websiteName><loggedInTime>2020-01-13</loggedInTime></activity>`
			}
			errs[i] = s.NewValidator().ValidateBytes([]byte(doc))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if i%2 == 0 {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, schema.ErrSchemaViolation)
		}
	}
}
