package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"annotation_platform/platform/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		switch res.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

// DoRaw returns the raw response body and status, for non json endpoints.
func (r *httpTestRequest) DoRaw() (int, string) {
	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()
	r.api.ServeHTTP(w, req)

	return w.Result().StatusCode, w.Body.String()
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Put(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "PUT", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) deleteUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v", userId)).Do(nil)
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) userInfo() (services.UserInfo, error) {
	var info services.UserInfo
	err := c.Get("/user/info").Do(&info)
	return info, err
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var users []services.UserInfo
	err := c.Get("/user/list").Do(&users)
	return users, err
}

type projectIds struct {
	ProjectId string `json:"project_id"`
	FolderId  string `json:"folder_id"`
}

func (c *client) createProject(name, projectType, labelClasses string) (projectIds, error) {
	body := map[string]string{
		"name": name, "type": projectType, "label_classes": labelClasses,
	}

	var res projectIds
	err := c.Post("/project/create").Json(body).Do(&res)
	return res, err
}

func (c *client) listProjects() ([]services.ProjectInfo, error) {
	var projects []services.ProjectInfo
	err := c.Get("/project/list").Do(&projects)
	return projects, err
}

func (c *client) deleteProject(projectId string) error {
	return c.Delete(fmt.Sprintf("/project/%v", projectId)).Do(nil)
}

func (c *client) assignRole(projectId, userId, role string) error {
	body := map[string]string{"user_id": userId, "role": role}
	return c.Post(fmt.Sprintf("/role/%v/assign", projectId)).Json(body).Do(nil)
}

func (c *client) removeRole(projectId, userId string) error {
	return c.Delete(fmt.Sprintf("/role/%v/user/%v", projectId, userId)).Do(nil)
}

func (c *client) listRoles(projectId string) ([]services.RoleInfo, error) {
	var roles []services.RoleInfo
	err := c.Get(fmt.Sprintf("/role/%v/list", projectId)).Do(&roles)
	return roles, err
}

func (c *client) createTask(projectId, name, annotationType string, files []string) (string, error) {
	body := map[string]interface{}{
		"name": name, "annotation_type": annotationType, "selected_files": files,
	}

	var res map[string]string
	err := c.Post(fmt.Sprintf("/task/project/%v/create", projectId)).Json(body).Do(&res)
	return res["task_id"], err
}

func (c *client) listTasks(projectId string) ([]services.TaskInfo, error) {
	var tasks []services.TaskInfo
	err := c.Get(fmt.Sprintf("/task/project/%v/list", projectId)).Do(&tasks)
	return tasks, err
}

func (c *client) getTask(taskId string) (services.TaskInfo, error) {
	var task services.TaskInfo
	err := c.Get(fmt.Sprintf("/task/%v", taskId)).Do(&task)
	return task, err
}

func (c *client) getAccessList(taskId string) ([]services.AccessEntry, error) {
	var entries []services.AccessEntry
	err := c.Get(fmt.Sprintf("/task/%v/access", taskId)).Do(&entries)
	return entries, err
}

func (c *client) updateAccess(taskId string, entries []map[string]string) error {
	body := map[string]interface{}{"access": entries}
	return c.Post(fmt.Sprintf("/task/%v/access", taskId)).Json(body).Do(nil)
}

func (c *client) setDataAccess(projectId, userFolder string, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.Put(fmt.Sprintf("/data-access/%v/%v", projectId, userFolder)).Json(body).Do(nil)
}

func (c *client) getDataAccess(projectId, userFolder string) (bool, error) {
	var res map[string]interface{}
	err := c.Get(fmt.Sprintf("/data-access/%v/%v", projectId, userFolder)).Do(&res)
	if err != nil {
		return false, err
	}
	enabled, _ := res["enabled"].(bool)
	return enabled, nil
}

type uploadResult struct {
	UserFolder string   `json:"user_folder"`
	Files      []string `json:"files"`
}

func (c *client) uploadFiles(projectId string, files map[string]string) (uploadResult, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	for name, content := range files {
		part, err := form.CreateFormFile("files", name)
		if err != nil {
			return uploadResult{}, err
		}
		if _, err := part.Write([]byte(content)); err != nil {
			return uploadResult{}, err
		}
	}
	if err := form.Close(); err != nil {
		return uploadResult{}, err
	}

	var res uploadResult
	err := c.Post(fmt.Sprintf("/upload/%v/files", projectId)).
		Header("Content-Type", form.FormDataContentType()).
		Body(body).
		Do(&res)
	return res, err
}

func (c *client) getFile(folderId, userFolder, path string) (int, string) {
	return c.Get(fmt.Sprintf("/upload/files/%v/%v/%v", folderId, userFolder, path)).DoRaw()
}

func (c *client) saveAnnotations(taskId string, doc interface{}) error {
	return c.Post(fmt.Sprintf("/annotation/%v", taskId)).Json(doc).Do(nil)
}

func (c *client) exportAnnotations(taskId, format string, result interface{}) error {
	return c.Get(fmt.Sprintf("/annotation/%v/export/%v", taskId, format)).Do(result)
}
